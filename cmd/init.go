package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/rubiojr/roost/pkg/config"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "interactive",
				Usage: "Ask for the main settings instead of writing the sample",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing configuration file",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return initConfig(c.String("config"), c.Bool("interactive"), c.Bool("force"))
		},
	}
}

// initConfig initializes the configuration file
func initConfig(configPath string, interactive, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", configPath)
	}

	cfg, err := config.GetDefaultConfig()
	if err != nil {
		return err
	}

	if interactive {
		if err := askConfig(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.SaveConfig(configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	} else if err := cfg.SaveTemplateConfig(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("Configuration initialized at %s\n", configPath)
	return nil
}

func askConfig(cfg *config.Config) error {
	var answers struct {
		StorageDir string
		Listen     string
		Locales    string
		Locale     string
		Currency   string
		Secret     string
	}

	questions := []*survey.Question{
		{
			Name:   "StorageDir",
			Prompt: &survey.Input{Message: "Storage directory:", Default: cfg.StorageDir},
		},
		{
			Name:   "Listen",
			Prompt: &survey.Input{Message: "Listen address:", Default: cfg.Listen},
		},
		{
			Name:   "Locales",
			Prompt: &survey.Input{Message: "Locales (comma separated):", Default: "en,fr"},
		},
		{
			Name:   "Locale",
			Prompt: &survey.Input{Message: "Default locale:", Default: cfg.DefaultLocale},
		},
		{
			Name:      "Currency",
			Prompt:    &survey.Input{Message: "Currency of listing prices:", Default: cfg.Currency.Base},
			Validate:  survey.Required,
			Transform: survey.TransformString(strings.ToUpper),
		},
		{
			Name:     "Secret",
			Prompt:   &survey.Password{Message: "Session secret (16+ characters, empty to generate one at startup):"},
			Validate: secretValidator,
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.StorageDir = answers.StorageDir
	// Derived from the storage directory when the file is loaded.
	cfg.Images.PublicDir = ""
	cfg.Images.CacheDir = ""
	cfg.Listen = answers.Listen
	cfg.Locales = nil
	for _, l := range strings.Split(answers.Locales, ",") {
		if l = strings.TrimSpace(l); l != "" {
			cfg.Locales = append(cfg.Locales, l)
		}
	}
	cfg.DefaultLocale = answers.Locale
	cfg.Currency.Base = answers.Currency
	cfg.Currency.Default = answers.Currency
	cfg.Session.Secret = answers.Secret
	return nil
}

func secretValidator(ans interface{}) error {
	s, _ := ans.(string)
	if s != "" && len(s) < 16 {
		return fmt.Errorf("the secret must be at least 16 characters")
	}
	return nil
}
