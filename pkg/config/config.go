// Package config loads and validates the JSON game configuration that
// seeds a run: the player roster and each player's initial process
// image.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ToxicPie/minecrab/core"
	"github.com/ToxicPie/minecrab/pkg/utils"
)

// ProcessImage is one player's starting process: its bytecode and memory
// planes, encoded as hex strings in the JSON config.
type ProcessImage struct {
	Nice     uint16 `json:"nice"`
	Lifetime int64  `json:"lifetime"`
	Bytecode string `json:"bytecode"`
	Memory   string `json:"memory"`
}

// Player is one config entry: an account plus its initial process image.
type Player struct {
	UID      uint32       `json:"uid"`
	Username string       `json:"username"`
	Process  ProcessImage `json:"process"`
}

// GameConfig is the top-level JSON document describing a run.
type GameConfig struct {
	MaxTicks uint64   `json:"max_ticks"`
	Seed     int64    `json:"seed"`
	Players  []Player `json:"players"`
	// MaxProcesses caps how many live processes a single owner may hold
	// at once; fork fails once an owner is at this cap. Zero (the field's
	// absence) means unlimited.
	MaxProcesses int `json:"max_processes"`
	// CryptoSpawn maps a challenge kind name (bed|dog|ether|btc|crab) to
	// its per-tick spawn distribution: a list of [difficulty, probability]
	// pairs, each drawn independently every tick.
	CryptoSpawn map[string][]SpawnRule `json:"crypto_spawn"`
}

// SpawnRule is one [difficulty, probability] entry from a crypto_spawn
// distribution, decoded from its 2-element JSON array form rather than
// an object, matching spec.md's wire format exactly.
type SpawnRule struct {
	Difficulty  int64
	Probability float64
}

// UnmarshalJSON decodes a SpawnRule from a [difficulty, probability]
// JSON array.
func (r *SpawnRule) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("config: invalid crypto_spawn entry: %w", err)
	}
	r.Difficulty = int64(pair[0])
	r.Probability = pair[1]
	return nil
}

// MarshalJSON encodes a SpawnRule back to its [difficulty, probability]
// array form.
func (r SpawnRule) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(r.Difficulty), r.Probability})
}

var challengeKindNames = map[string]core.ChallengeKind{
	"bed":   core.ChallengeBed,
	"dog":   core.ChallengeDog,
	"ether": core.ChallengeEther,
	"btc":   core.ChallengeBtc,
	"crab":  core.ChallengeCrab,
}

// ChallengeSpawnTable converts CryptoSpawn's string-keyed distributions
// into the core.ChallengeKind-keyed table the kernel consumes, silently
// skipping any name that isn't one of the five known challenge kinds.
func (c *GameConfig) ChallengeSpawnTable() map[core.ChallengeKind][]core.SpawnRule {
	table := make(map[core.ChallengeKind][]core.SpawnRule, len(c.CryptoSpawn))
	for name, rules := range c.CryptoSpawn {
		kind, ok := challengeKindNames[name]
		if !ok {
			continue
		}
		converted := make([]core.SpawnRule, len(rules))
		for i, rule := range rules {
			converted[i] = core.SpawnRule{Difficulty: rule.Difficulty, Probability: rule.Probability}
		}
		table[kind] = converted
	}
	return table
}

// Load reads and parses a GameConfig from path, rejecting duplicate player
// uids. Player planes are not decoded here; DecodePlane checks them when
// an emulator is built from them.
func Load(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.Wrap(err, "read config file")
	}
	var cfg GameConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, utils.Wrap(err, "parse config json")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *GameConfig) validate() error {
	seen := make(map[uint32]bool, len(c.Players))
	for _, p := range c.Players {
		if seen[p.UID] {
			return fmt.Errorf("config: duplicate player uid %d", p.UID)
		}
		seen[p.UID] = true
	}
	return nil
}

// DecodePlane decodes a hex-encoded bytecode or memory plane into exactly
// size bytes: a shorter image is zero-padded to size, and one longer than
// size is rejected.
func DecodePlane(hexStr string, size int) ([]byte, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("config: invalid hex plane: %w", err)
	}
	if len(decoded) > size {
		return nil, fmt.Errorf("config: plane of %d bytes exceeds size %d", len(decoded), size)
	}
	padded := make([]byte, size)
	copy(padded, decoded)
	return padded, nil
}

// BuildEmulator constructs a fresh *core.Emulator from a process image's
// hex-encoded planes.
func (img ProcessImage) BuildEmulator() (*core.Emulator, error) {
	bytecode, err := DecodePlane(img.Bytecode, core.BytecodeSize)
	if err != nil {
		return nil, utils.Wrap(err, "decode bytecode plane")
	}
	memory, err := DecodePlane(img.Memory, core.MemorySize)
	if err != nil {
		return nil, utils.Wrap(err, "decode memory plane")
	}
	return core.NewEmulator(memory, bytecode), nil
}
