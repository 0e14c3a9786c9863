package vm

import (
	"fmt"
	"io"

	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/rlwe"
	"github.com/entropic-labs/fhevm/utils/structs"
	"gopkg.in/yaml.v3"
)

// configYAML is the on-disk literal form of a Config: the ring parameters an
// rlwe.ParametersLiteral would take (mirrored as plain YAML-friendly fields
// rather than embedding ParametersLiteral itself, since its Q/P/LogQ/LogP
// fields are structs.Vector, which yaml.v3 cannot unmarshal into directly),
// plus the GLWE-layer and cycle-engine fields Config adds on top.
type configYAML struct {
	LogN   int   `yaml:"log_n"`
	LogQ   []int `yaml:"log_q"`
	LogP   []int `yaml:"log_p,omitempty"`
	Rank   int   `yaml:"rank"`
	Base2K int   `yaml:"base2k"`

	RomAddrBits int    `yaml:"rom_addr_bits"`
	RamAddrBits int    `yaml:"ram_addr_bits"`
	Offset      uint32 `yaml:"offset"`
	EnableRV32M bool   `yaml:"enable_rv32m"`
	Threads     int    `yaml:"threads"`
}

// LoadConfigYAML reads a Config from r's YAML encoding (spec 9's open
// question on a parameter set's on-disk form, resolved as a literal
// YAML file in the shape rlwe.ParametersLiteral already models in Go).
func LoadConfigYAML(r io.Reader) (*Config, error) {
	var y configYAML
	if err := yaml.NewDecoder(r).Decode(&y); err != nil {
		return nil, fmt.Errorf("vm: LoadConfigYAML: %w", err)
	}

	lit := rlwe.ParametersLiteral{
		LogN: y.LogN,
		LogQ: structs.Vector[int](y.LogQ),
		LogP: structs.Vector[int](y.LogP),
	}
	params, err := rlwe.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("vm: LoadConfigYAML: %w", err)
	}

	gp := glwe.Params{Parameters: params, Rank: y.Rank, Base2K: y.Base2K}
	return NewConfig(gp, y.RomAddrBits, y.RamAddrBits, y.Offset, y.EnableRV32M, y.Threads)
}
