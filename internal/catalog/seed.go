package catalog

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// SeedFile is the on-disk shape of a bank used for local seeding.
type SeedFile struct {
	Bank      Bank       `json:"bank"`
	Questions []Question `json:"questions"`
}

// LoadSeedFile reads a YAML bank file.
//
//	bank: {id: b1, name: Geography, scoreConfig: {SINGLE: 2}}
//	questions:
//	  - {id: q1, type: SINGLE, options: [Paris, Rome], answer: [A]}
func LoadSeedFile(path string) (SeedFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return SeedFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	var sf SeedFile
	if err := k.UnmarshalWithConf("", &sf, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return SeedFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if sf.Bank.ID == "" {
		return SeedFile{}, fmt.Errorf("%s: bank.id is required", path)
	}
	for i := range sf.Questions {
		if sf.Questions[i].ID == "" {
			return SeedFile{}, fmt.Errorf("%s: question %d has no id", path, i)
		}
		sf.Questions[i].BankID = sf.Bank.ID
	}
	return sf, nil
}
