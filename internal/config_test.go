package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("BLUGE_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	setRequired(t)

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal(8080, config.Port)
	req.Equal(9090, config.AdminPort)
	req.Equal(time.Second, config.DeliveryTimeout)
	req.Equal([]string{"admin"}, config.ElevatedRoles)
	req.Nil(config.LimitMessages)
	req.Zero(config.DebugPort)
}

func TestConfig_Overrides(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("LIMIT_MESSAGES", "50")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com|https://b.example.com")
	t.Setenv("ELEVATED_ROLES", "admin|moderator")
	t.Setenv("DELIVERY_TIMEOUT", "250ms")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.Equal(lo.ToPtr(50), config.LimitMessages)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"}, config.AllowedOrigins)
	req.Equal([]string{"admin", "moderator"}, config.ElevatedRoles)
	req.Equal(250*time.Millisecond, config.DeliveryTimeout)
}

func TestConfig_Missing_Secret(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("BLUGE_FILEPATH", t.TempDir())

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.Error(err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		JwtSecret:            testSecret,
		ConnectionBufferSize: 1,
		MaxContentLength:     1,
		DeliveryTimeout:      time.Second,
		MetricInterval:       time.Second,
		Port:                 8080,
		AdminPort:            9090,
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"Valid", func(c *Config) {}, true},
		{"Short secret", func(c *Config) { c.JwtSecret = "short" }, false},
		{"No buffer", func(c *Config) { c.ConnectionBufferSize = 0 }, false},
		{"Zero page", func(c *Config) { c.LimitMessages = lo.ToPtr(0) }, false},
		{"Same ports", func(c *Config) { c.AdminPort = c.Port }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			err := config.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("**")
	req.Error(err)
	_, err = CharacterRune("")
	req.Error(err)
}
