package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/hupe1980/jarvis/config"
	"github.com/hupe1980/jarvis/core"
)

var keyPrompts = []struct {
	id    core.ProviderID
	label string
}{
	{core.ProviderOpenAI, "OpenAI API Key"},
	{core.ProviderClaude, "Anthropic API Key"},
	{core.ProviderGemini, "Google Gemini API Key"},
}

// Setup interactively edits cfg: API keys, default provider and the shared
// generation parameters. Empty answers keep the current value. The caller
// saves the result.
func (c *Console) Setup(cfg *config.Config) error {
	fmt.Fprintln(c.out, c.styles.warn.Render("Let's configure your API keys:"))

	for _, kp := range keyPrompts {
		prompt := kp.label + ": "
		if _, ok := cfg.Credential(kp.id); ok {
			prompt = kp.label + " (set, Enter keeps it): "
		}
		key, err := c.secret(prompt)
		if err != nil {
			return err
		}
		if key = strings.TrimSpace(key); key != "" {
			cfg.SetCredential(kp.id, key)
		}
	}

	provider, err := c.ask("Default provider [openai/claude/gemini]: ", cfg.DefaultProvider, func(s string) error {
		_, err := core.ParseProviderID(s)
		return err
	})
	if err != nil {
		return err
	}
	id, _ := core.ParseProviderID(provider)
	cfg.DefaultProvider = string(id)

	name, err := c.ask("Model name: ", cfg.Model.Name, func(s string) error {
		if s == "" {
			return errors.New("model name must not be empty")
		}
		return nil
	})
	if err != nil {
		return err
	}
	cfg.Model.Name = name

	temp, err := c.ask("Temperature: ", strconv.FormatFloat(cfg.Model.Temperature, 'f', -1, 64), func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		if v < 0 || v > 2 {
			return fmt.Errorf("temperature %.2f out of range [0,2]", v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cfg.Model.Temperature, _ = strconv.ParseFloat(temp, 64)

	maxTokens, err := c.ask("Max tokens: ", strconv.Itoa(cfg.Model.MaxTokens), func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		if v <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", v)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cfg.Model.MaxTokens, _ = strconv.Atoi(maxTokens)

	return nil
}

// Saved prints the setup success message.
func (c *Console) Saved(path string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.styles.ok.Render("✅ Configuration saved successfully!"), path)
}

// ask prompts with current pre-filled until validate accepts the answer.
func (c *Console) ask(prompt, current string, validate func(string) error) (string, error) {
	for {
		answer, err := c.line.PromptWithSuggestion(prompt, current, -1)
		if err != nil {
			return "", promptErr(err)
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = current
		}
		if err := validate(answer); err != nil {
			c.Warn(err.Error())
			continue
		}
		return answer, nil
	}
}

func (c *Console) secret(prompt string) (string, error) {
	key, err := c.line.PasswordPrompt(prompt)
	if errors.Is(err, liner.ErrNotTerminalOutput) {
		key, err = c.line.Prompt(prompt)
	}
	if err != nil {
		return "", promptErr(err)
	}
	return key, nil
}

func promptErr(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", core.ErrInterrupted, err)
	}
	return err
}
