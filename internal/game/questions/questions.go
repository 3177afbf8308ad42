// Package questions loads the embedded would-you-rather and this-or-that
// question banks and draws questions from them without repeats.
package questions

import (
	"embed"
	"fmt"
	"sync"

	"github.com/jason-s-yu/gamehub/internal/dependencies/random"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var data embed.FS

type Category string

const (
	Food      Category = "food"
	Travel    Category = "travel"
	Lifestyle Category = "lifestyle"
	Deep      Category = "deep"
	Fun       Category = "fun"
)

// AllCategories is the default category selection.
var AllCategories = []Category{Food, Travel, Lifestyle, Deep, Fun}

func (c Category) Valid() bool {
	for _, k := range AllCategories {
		if k == c {
			return true
		}
	}
	return false
}

// Option is one side of a question. Emoji is only set for this-or-that.
type Option struct {
	Text  string `json:"text" yaml:"text"`
	Emoji string `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

type Question struct {
	ID       string   `json:"id" yaml:"id"`
	Category Category `json:"category" yaml:"category"`
	OptionA  Option   `json:"optionA" yaml:"a"`
	OptionB  Option   `json:"optionB" yaml:"b"`
}

// Bank is an immutable set of questions.
type Bank struct {
	questions []Question
}

var (
	loadOnce sync.Once
	banks    map[string]*Bank
	loadErr  error
)

func load() {
	banks = make(map[string]*Bank)
	for _, name := range []string{"would_you_rather", "this_or_that"} {
		raw, err := data.ReadFile("data/" + name + ".yaml")
		if err != nil {
			loadErr = err
			return
		}
		var qs []Question
		if err := yaml.Unmarshal(raw, &qs); err != nil {
			loadErr = fmt.Errorf("parse %s questions: %w", name, err)
			return
		}
		banks[name] = &Bank{questions: qs}
	}
}

func bank(name string) *Bank {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	return banks[name]
}

// WouldYouRather returns the would-you-rather bank.
func WouldYouRather() *Bank { return bank("would_you_rather") }

// ThisOrThat returns the this-or-that bank.
func ThisOrThat() *Bank { return bank("this_or_that") }

// Len is the total number of questions in the bank.
func (b *Bank) Len() int { return len(b.questions) }

// Pick draws a question from the given categories that is not in used. Once
// every matching question has been used, repeats are allowed again.
func (b *Bank) Pick(categories []Category, used map[string]bool, rnd random.Random) (Question, error) {
	allowed := make(map[Category]bool, len(categories))
	for _, c := range categories {
		allowed[c] = true
	}
	var pool, fresh []Question
	for _, q := range b.questions {
		if !allowed[q.Category] {
			continue
		}
		pool = append(pool, q)
		if !used[q.ID] {
			fresh = append(fresh, q)
		}
	}
	if len(pool) == 0 {
		return Question{}, fmt.Errorf("no questions for categories %v", categories)
	}
	if len(fresh) > 0 {
		pool = fresh
	}
	return pool[rnd.Intn(len(pool))], nil
}
