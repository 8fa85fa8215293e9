// Package scenario loads YAML-described end-to-end test fixtures: a
// small game config plus the number of ticks to run and the wallet
// totals expected afterward.
package scenario

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ToxicPie/minecrab/pkg/utils"
)

// ExpectedWallet is one player's wallet assertion at the end of a
// scenario run.
type ExpectedWallet struct {
	UID               uint32 `yaml:"uid"`
	DogeCoin          int64  `yaml:"doge_coin"`
	StarSleepShortage int64  `yaml:"star_sleep_shortage"`
	Ethereum          int64  `yaml:"ethereum"`
	BitCoin           int64  `yaml:"bit_coin"`
	CrabCoin          int64  `yaml:"crab_coin"`
}

// Player is one scenario participant's config plus hex-encoded bytecode.
type Player struct {
	UID      uint32 `yaml:"uid"`
	Username string `yaml:"username"`
	Nice     int8   `yaml:"nice"`
	Lifetime int64  `yaml:"lifetime"`
	Bytecode string `yaml:"bytecode"`
	Memory   string `yaml:"memory"`
}

// Scenario is one named end-to-end fixture.
type Scenario struct {
	Name     string           `yaml:"name"`
	Seed     int64            `yaml:"seed"`
	Ticks    uint64           `yaml:"ticks"`
	Players  []Player         `yaml:"players"`
	Expected []ExpectedWallet `yaml:"expected"`
}

// Load parses a single scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, "read scenario file")
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, utils.Wrap(err, "parse scenario yaml")
	}
	return &s, nil
}
