// Command fhevm-run loads a RISC-V ELF binary, encrypts its instructions
// and initial data memory under a freshly generated evaluation-key bundle,
// runs a fixed number of encrypted cycles, and decrypts the result — the
// thin harness wiring package loader, package keys and package vm together
// end to end (spec 4.13's external cycle-count decision, here taken from a
// flag rather than hard-coded).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/entropic-labs/fhevm/debug"
	"github.com/entropic-labs/fhevm/glwe"
	"github.com/entropic-labs/fhevm/keys"
	"github.com/entropic-labs/fhevm/loader"
	"github.com/entropic-labs/fhevm/rlwe"
	"github.com/entropic-labs/fhevm/vm"
)

func main() {
	elfPath := flag.String("elf", "", "path to a RV32I/M ELF binary")
	configPath := flag.String("config", "", "path to a vm.Config YAML file (default: a small built-in test configuration)")
	inputPath := flag.String("input", "", "file whose bytes seed the .inpdata region, if present")
	cycles := flag.Int("cycles", 64, "number of encrypted cycles to run")
	debugMode := flag.Bool("debug", false, "run a plaintext shadow interpreter alongside and assert agreement every cycle")
	flag.Parse()

	if *elfPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fhevm-run -elf <path> [-config <path>] [-input <path>] [-cycles N] [-debug]")
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("fhevm-run: %v", err)
	}

	img, err := loader.LoadELF(*elfPath)
	if err != nil {
		log.Fatalf("fhevm-run: %v", err)
	}

	if *inputPath != "" {
		data, err := os.ReadFile(*inputPath)
		if err != nil {
			log.Fatalf("fhevm-run: %v", err)
		}
		if err := img.WriteInput(data); err != nil {
			log.Fatalf("fhevm-run: %v", err)
		}
	}

	bundle, eval := keys.Generate(cfg.Params, rlwe.DigitDecomposition{})

	st, err := vm.NewStateFromImage(eval, bundle, cfg, img)
	if err != nil {
		log.Fatalf("fhevm-run: %v", err)
	}

	var shadow *debug.Shadow
	if *debugMode {
		shadow = debug.NewShadow(cfg)
		loadShadowROMs(shadow, img)
		copy(shadow.Ram, img.RamWords())
	}

	it := vm.NewInterpreter(cfg, bundle)
	for i := 0; i < *cycles; i++ {
		it.Cycle(eval, st)
		if shadow != nil {
			shadow.Cycle()
			shadow.Assert(eval, bundle, st)
			if i%16 == 0 {
				fmt.Printf("cycle %d: pc noise budget %.1f bits\n", i, bundle.NoiseBudget(st.Pc.Bits[0]))
			}
		}
	}

	fmt.Printf("ran %d cycles\n", *cycles)
	fmt.Printf("pc = %#x\n", st.DecryptPc(bundle))

	regs := st.DecryptRegisters(eval, bundle)
	for i, v := range regs {
		if v != 0 {
			fmt.Printf("x%-2d = %#010x\n", i, v)
		}
	}

	if img.OutputSize > 0 {
		start := int(img.OutputAddr-img.RamBase) / 4
		count := (int(img.OutputSize) + 3) / 4
		out := st.DecryptRamRange(eval, bundle, start, count)
		fmt.Printf("output words: %#08x\n", out)
	}
}

func loadConfig(path string) (*vm.Config, error) {
	if path == "" {
		return defaultConfig()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fhevm-run: opening config: %w", err)
	}
	defer f.Close()
	return vm.LoadConfigYAML(f)
}

// defaultConfig is a small, insecure-but-fast parameter set adequate for
// exercising the cycle engine on trivial programs without a config file.
func defaultConfig() (*vm.Config, error) {
	params, err := rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN: 11,
		LogQ: []int{54, 49},
		LogP: []int{55},
	})
	if err != nil {
		return nil, fmt.Errorf("fhevm-run: %w", err)
	}
	gp := glwe.Params{Parameters: params, Rank: 1, Base2K: 18}
	return vm.NewConfig(gp, 6, 8, img0Offset, false, 1)
}

// img0Offset is the default configuration's assumed RAM base; real
// deployments should supply a matching -config instead of relying on this.
const img0Offset = 0

func loadShadowROMs(sh *debug.Shadow, img *loader.Image) {
	n := img.NumWords
	imm := make([]uint32, n)
	rs1 := make([]uint32, n)
	rs2 := make([]uint32, n)
	rd := make([]uint32, n)
	rdu := make([]uint32, n)
	mu := make([]uint32, n)
	pcu := make([]uint32, n)
	for i, fl := range img.Fields {
		imm[i] = fl.Imm
		rs1[i] = fl.Rs1Addr
		rs2[i] = fl.Rs2Addr
		rd[i] = fl.RdAddr
		rdu[i] = uint32(fl.Rdu)
		mu[i] = uint32(fl.Mu)
		pcu[i] = uint32(fl.Pcu)
	}
	sh.LoadROM(vm.RomImm, imm)
	sh.LoadROM(vm.RomRs1Addr, rs1)
	sh.LoadROM(vm.RomRs2Addr, rs2)
	sh.LoadROM(vm.RomRdAddr, rd)
	sh.LoadROM(vm.RomRdu, rdu)
	sh.LoadROM(vm.RomMu, mu)
	sh.LoadROM(vm.RomPcu, pcu)
}
