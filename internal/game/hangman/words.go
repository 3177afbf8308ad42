package hangman

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jason-s-yu/gamehub/internal/dependencies/random"
	"gopkg.in/yaml.v3"
)

//go:embed data/words.yaml
var wordsYAML []byte

type Category string

const (
	Movies     Category = "movies"
	Animals    Category = "animals"
	Countries  Category = "countries"
	Food       Category = "food"
	Sports     Category = "sports"
	Technology Category = "technology"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var (
	wordsOnce sync.Once
	wordBank  map[Category]map[Difficulty][]string
	wordsErr  error
)

func loadWords() (map[Category]map[Difficulty][]string, error) {
	wordsOnce.Do(func() {
		if err := yaml.Unmarshal(wordsYAML, &wordBank); err != nil {
			wordsErr = fmt.Errorf("parse hangman words: %w", err)
		}
	})
	return wordBank, wordsErr
}

// PickWord draws a bank word for category and difficulty.
func PickWord(category Category, difficulty Difficulty, rnd random.Random) (string, error) {
	bank, err := loadWords()
	if err != nil {
		return "", err
	}
	words := bank[category][difficulty]
	if len(words) == 0 {
		return "", fmt.Errorf("no words for %s/%s", category, difficulty)
	}
	return words[rnd.Intn(len(words))], nil
}

func validCategory(c Category) bool {
	bank, err := loadWords()
	if err != nil {
		return false
	}
	_, ok := bank[c]
	return ok
}
