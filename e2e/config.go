package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

// Config targets a running gateway whose store already holds the two users below,
// seeded with tools/admin.
type Config struct {
	GatewayURL string `envconfig:"E2E_GATEWAY_URL"`
	JwtSecret  string `envconfig:"JWT_SECRET"`
	OwnerID    string `envconfig:"E2E_OWNER_ID" default:"alice"`
	MemberID   string `envconfig:"E2E_MEMBER_ID" default:"bob"`
	// E2E_DEBUG_JSON dumps every frame exchanged with the gateway
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
