// Package listener owns the operator's readline console.
package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

var (
	rl *readline.Instance
	mu sync.Mutex
)

func Init() error {
	var err error
	rl, err = readline.NewEx(&readline.Config{
		Prompt:          "pwnloop> ",
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	return err
}

func Close() {
	if rl != nil {
		_ = rl.Close()
	}
}

// Println prints above the prompt without mangling the current input line.
func Println(s string) {
	mu.Lock()
	defer mu.Unlock()
	if rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = rl.Write([]byte("\r\n" + s + "\r\n"))
	rl.Refresh()
}

func GetInput() string {
	line, err := rl.Readline()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// Prompt asks a one-off question with its own prompt string and restores the
// default prompt afterwards.
func Prompt(question string) string {
	mu.Lock()
	old := rl.Config.Prompt
	rl.SetPrompt(question)
	mu.Unlock()

	line, err := rl.Readline()
	if err != nil {
		line = ""
	}

	mu.Lock()
	rl.SetPrompt(old)
	mu.Unlock()
	return strings.TrimSpace(line)
}

// AskYesNo keeps asking until it gets a y/n answer.
func AskYesNo(question string) bool {
	for {
		ans := strings.ToLower(Prompt(question + " [y/n] > "))
		switch ans {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		Println("Please answer y/n.")
	}
}
