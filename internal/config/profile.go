package config

import "fmt"

// Coord is a fixed tap point in device pixels.
type Coord struct {
	X int `mapstructure:"x" json:"x"`
	Y int `mapstructure:"y" json:"y"`
}

// Swipe describes the scroll gesture geometry for one screen size.
type Swipe struct {
	FromX  int `mapstructure:"from_x" json:"from_x"`
	FromY  int `mapstructure:"from_y" json:"from_y"`
	ToX    int `mapstructure:"to_x" json:"to_x"`
	ToY    int `mapstructure:"to_y" json:"to_y"`
	Millis int `mapstructure:"millis" json:"millis"`
}

// DeviceProfile groups everything that depends on the phone's screen
// geometry: the scroll gesture and the fixed coordinates used where the
// layout is stable enough to skip visual localization. Template images
// captured on the reference 1080x1920 screen are rescaled by
// TemplateScale for other resolutions.
type DeviceProfile struct {
	Name   string `mapstructure:"name" json:"name"`
	Width  int    `mapstructure:"width" json:"width"`
	Height int    `mapstructure:"height" json:"height"`

	Swipe Swipe `mapstructure:"swipe" json:"swipe"`

	// Compose submit button, top right of the reply composer.
	PostSubmit Coord `mapstructure:"post_submit" json:"post_submit"`
	// First entry of the repost bottom sheet.
	RepostOption Coord `mapstructure:"repost_option" json:"repost_option"`
	// Follow button next to the "..." button below the profile banner.
	FollowButton Coord `mapstructure:"follow_button" json:"follow_button"`

	TemplateScale float64 `mapstructure:"template_scale" json:"template_scale"`
}

var FHD = DeviceProfile{
	Name:   "1080x1920",
	Width:  1080,
	Height: 1920,

	Swipe: Swipe{FromX: 540, FromY: 1500, ToX: 540, ToY: 500, Millis: 500},

	PostSubmit:   Coord{X: 980, Y: 350},
	RepostOption: Coord{X: 230, Y: 1440},
	FollowButton: Coord{X: 990, Y: 900},

	TemplateScale: 1,
}

var HD = DeviceProfile{
	Name:   "720x1280",
	Width:  720,
	Height: 1280,

	Swipe: Swipe{FromX: 360, FromY: 1000, ToX: 360, ToY: 333, Millis: 500},

	PostSubmit:   Coord{X: 653, Y: 233},
	RepostOption: Coord{X: 153, Y: 960},
	FollowButton: Coord{X: 660, Y: 600},

	TemplateScale: float64(720) / 1080,
}

var builtinProfiles = map[string]DeviceProfile{
	FHD.Name: FHD,
	HD.Name:  HD,
}

// Profile resolves a profile by name, preferring profiles declared in the
// config file over the builtin ones.
func (c *Config) Profile() (DeviceProfile, error) {
	name := c.ProfileName
	if name == "" {
		name = FHD.Name
	}
	if p, ok := c.Profiles[name]; ok {
		if p.Name == "" {
			p.Name = name
		}
		if p.TemplateScale == 0 {
			p.TemplateScale = 1
		}
		return p, nil
	}
	if p, ok := builtinProfiles[name]; ok {
		return p, nil
	}
	return DeviceProfile{}, fmt.Errorf("unknown device profile %q", name)
}
