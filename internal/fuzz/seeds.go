package fuzztests

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
)

// numberSeeds returns inputs around the even-number boundary plus every
// quoted terminal of the example grammars.
func numberSeeds() [][]byte {
	var seeds [][]byte
	for _, s := range []string{"", "0", "1", "2", "+2", "+", "-4", "007", "18446744073709551616", "\xff\xfe", "２"} {
		seeds = append(seeds, []byte(s))
	}
	return append(seeds, grammarSeeds()...)
}

func grammarSeeds() [][]byte {
	matches, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.fan"))
	if err != nil {
		return nil
	}
	var seeds [][]byte
	for _, path := range matches {
		// #nosec G304 -- path comes from a fixed repository glob
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			// каждый терминал в кавычках становится отдельным seed
			for i, part := range strings.Split(line, `"`) {
				if i%2 == 1 {
					seeds = append(seeds, clampSeed([]byte(part)))
				}
			}
		}
	}
	return seeds
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
