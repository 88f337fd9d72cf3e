package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/roost/pkg/config"
	"github.com/rubiojr/roost/pkg/core"
	"github.com/rubiojr/roost/pkg/currency"
	"github.com/rubiojr/roost/pkg/i18n"
	"github.com/rubiojr/roost/pkg/pagination"
	"github.com/rubiojr/roost/pkg/search"
	"github.com/urfave/cli/v3"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	listingStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search listings from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "keywords", Aliases: []string{"q"}, Usage: "Words to look for in titles and descriptions"},
			&cli.StringSliceFlag{Name: "category", Usage: "Category id (repeatable)"},
			&cli.StringFlag{Name: "price-min", Usage: "Minimum price per night"},
			&cli.StringFlag{Name: "price-max", Usage: "Maximum price per night"},
			&cli.StringFlag{Name: "date-start", Usage: "Arrival date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "date-end", Usage: "Departure date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "lat", Usage: "Latitude of the searched location"},
			&cli.StringFlag{Name: "lng", Usage: "Longitude of the searched location"},
			&cli.StringFlag{Name: "sort", Usage: "Sort order: recommended, price or distance"},
			&cli.StringFlag{Name: "page", Usage: "Result page", Value: "1"},
			&cli.StringFlag{Name: "limit", Usage: "Listings per page"},
			&cli.StringFlag{Name: "locale", Usage: "Locale of titles and messages"},
			&cli.StringFlag{Name: "currency", Usage: "Display currency"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			values := url.Values{}
			set := func(field, flag string) {
				if v := c.String(flag); v != "" {
					values.Set(field, v)
				}
			}
			set(search.FieldKeywords, "keywords")
			set(search.FieldPriceMin, "price-min")
			set(search.FieldPriceMax, "price-max")
			set(search.FieldDateStart, "date-start")
			set(search.FieldDateEnd, "date-end")
			set(search.FieldLat, "lat")
			set(search.FieldLng, "lng")
			set(search.FieldSortBy, "sort")
			set(search.FieldPage, "page")
			set(search.FieldMaxPerPage, "limit")
			for _, id := range c.StringSlice("category") {
				values.Add(search.FieldCategories, id)
			}
			return searchListings(ctx, c.String("config"), values, c.String("locale"), c.String("currency"))
		},
	}
}

// searchListings runs a listing search and prints one page of results
func searchListings(ctx context.Context, configPath string, values url.Values, locale, code string) error {
	cfg, store, err := loadStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore(store)

	translator, err := i18n.New(cfg.DefaultLocale, cfg.Locales)
	if err != nil {
		return err
	}
	if locale == "" || !translator.Supports(locale) {
		locale = cfg.DefaultLocale
	}

	converter, err := newConverter(cfg)
	if err != nil {
		return err
	}
	if code == "" {
		code = converter.Default()
	}

	req, errs := search.ParseRequest(values, search.Defaults{MaxPerPage: cfg.MaxPerPage, Limit: config.MaxMaxPerPage})
	if len(errs) > 0 {
		for _, fe := range errs {
			fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %s", fe.Field, translator.Trans(fe.Key, fe.Params, locale))))
		}
		return errors.New("invalid search")
	}

	results, err := search.NewManager(store).Search(ctx, req, locale)
	if err != nil {
		return fmt.Errorf("searching listings: %w", err)
	}

	fmt.Println(titleStyle.Render(translator.Trans("search.results", map[string]string{"count": strconv.Itoa(results.Total)}, locale)))
	if len(results.Listings) == 0 {
		fmt.Println(noDataStyle.Render(translator.Trans("search.no_results", nil, locale)))
		return nil
	}

	for _, l := range results.Listings {
		fmt.Println(formatListing(l, locale, cfg.DefaultLocale, converter, code))
	}
	fmt.Println(metaStyle.Render(fmt.Sprintf("page %d/%d", results.Page, pagination.PagesCount(results.Total, results.MaxPerPage))))
	return nil
}

func formatListing(l core.Listing, locale, fallback string, converter *currency.Converter, code string) string {
	tr, _ := l.Translation(locale, fallback)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")).Render(tr.Title))
	b.WriteString("  ")
	b.WriteString(priceStyle.Render(converter.ConvertAndFormat(l.PriceUnits(), code, false, locale)))
	b.WriteString("\n")

	meta := []string{fmt.Sprintf("#%d", l.ID), l.Location.City}
	for _, c := range l.Categories {
		meta = append(meta, c.Name(locale, fallback))
	}
	meta = append(meta, fmt.Sprintf("%s %.1f", strings.Repeat("★", int(l.AverageRating)), l.AverageRating))
	if l.Certified {
		meta = append(meta, "certified")
	}
	b.WriteString(metaStyle.Render(strings.Join(meta, " · ")))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render("/listing/" + url.PathEscape(tr.Slug)))

	return listingStyle.Render(b.String())
}

// newConverter builds the currency converter from the configured rates or
// rates file.
func newConverter(cfg *config.Config) (*currency.Converter, error) {
	rates := cfg.Currency.Rates
	if cfg.Currency.RatesFile != "" {
		var err error
		rates, err = currency.LoadRatesFile(cfg.Currency.RatesFile, cfg.Currency.Base)
		if err != nil {
			return nil, err
		}
	}
	converter, err := currency.NewConverter(cfg.Currency.Base, cfg.Currency.Default, rates)
	if err != nil {
		return nil, fmt.Errorf("creating currency converter: %w", err)
	}
	return converter, nil
}
