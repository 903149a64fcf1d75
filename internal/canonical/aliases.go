package canonical

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliases []byte

// AliasTable folds duplicate-content market ids onto one canonical id.
type AliasTable map[int]int

type aliasFile struct {
	Markets []struct {
		Name    string `yaml:"name"`
		ID      int    `yaml:"id"`
		Aliases []int  `yaml:"aliases"`
	} `yaml:"markets"`
}

// DefaultAliases returns the table compiled into the binary.
func DefaultAliases() AliasTable {
	table, err := ParseAliases(bytes.NewReader(defaultAliases))
	if err != nil {
		panic(fmt.Sprintf("embedded alias table: %v", err))
	}
	return table
}

// LoadAliases reads an alias table from path.
func LoadAliases(path string) (AliasTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias table: %w", err)
	}
	defer f.Close()

	return ParseAliases(f)
}

// ParseAliases decodes a YAML alias document. An id may be the alias of
// only one market, and a canonical id may not itself be an alias, so
// folding is always a single lookup.
func ParseAliases(r io.Reader) (AliasTable, error) {
	var doc aliasFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode alias table: %w", err)
	}

	table := make(AliasTable)
	canonical := make(map[int]string)
	for _, m := range doc.Markets {
		canonical[m.ID] = m.Name
		for _, alias := range m.Aliases {
			if alias == m.ID {
				return nil, fmt.Errorf("market %s: alias %d equals its own id", m.Name, alias)
			}
			if prev, dup := table[alias]; dup {
				return nil, fmt.Errorf("alias %d mapped to both %d and %d", alias, prev, m.ID)
			}
			table[alias] = m.ID
		}
	}

	for alias, target := range table {
		if name, isCanonical := canonical[alias]; isCanonical {
			return nil, fmt.Errorf("market %s (%d) is also an alias of %d", name, alias, target)
		}
	}

	return table, nil
}

// Fold returns the canonical market id for id.
func (t AliasTable) Fold(id int) int {
	if target, ok := t[id]; ok {
		return target
	}
	return id
}
