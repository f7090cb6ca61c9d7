// Package selectors provides the site-specific text fragments and DOM
// selectors the scrape driver matches against, loaded from an embedded YAML
// file and optionally hot-reloaded from an external override so a markup
// change on the target site doesn't require a rebuild.
package selectors

import (
	"embed"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed maps.yaml
var defaultFS embed.FS

// MapSelectors holds every site-specific fragment the scrape driver needs
// to classify pages and locate controls on them.
type MapSelectors struct {
	// RootURLTemplate is the mapping site's root page, with %f,%f,%d
	// verbs for latitude, longitude, zoom.
	RootURLTemplate string `yaml:"root_url_template"`
	// SearchInputName is the name attribute of the search box.
	SearchInputName string `yaml:"search_input_name"`
	// PlaceURLSubstring identifies a single-result navigation, e.g. "/maps/place".
	PlaceURLSubstring string `yaml:"place_url_substring"`
	// MainRolePrefix is the ARIA role prefix of the single-result container.
	MainRolePrefix string `yaml:"main_role_prefix"`
	// NotFoundBannerText is a substring of the "can't find" banner.
	NotFoundBannerText string `yaml:"not_found_banner_text"`
	// ResultsForPrefix is the ARIA-label prefix of a multi-result container.
	ResultsForPrefix string `yaml:"results_for_prefix"`
	// SubtitleClass marks sibling spans holding short extra text on a
	// multi-result anchor.
	SubtitleClass string `yaml:"subtitle_class"`
	// MoreReviewsActionSuffix is the suffix of the "more reviews" button's
	// action attribute.
	MoreReviewsActionSuffix string `yaml:"more_reviews_action_suffix"`
	// ReviewsURLSubstring identifies intercepted review payload requests.
	ReviewsURLSubstring string `yaml:"reviews_url_substring"`
}

var (
	instance *MapSelectors
	once     sync.Once
)

// Get returns the singleton set of embedded defaults.
func Get() *MapSelectors {
	once.Do(func() {
		s, err := load(defaultFS, "maps.yaml")
		if err != nil {
			log.Error().Err(err).Msg("failed to load embedded selectors, using hardcoded fallback")
			s = defaultSelectors()
		}
		instance = s
	})
	return instance
}

func load(fsys embed.FS, name string) (*MapSelectors, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var s MapSelectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func defaultSelectors() *MapSelectors {
	return &MapSelectors{
		RootURLTemplate:         "https://www.google.com/maps/@%f,%f,%dz",
		SearchInputName:         "q",
		PlaceURLSubstring:       "/maps/place",
		MainRolePrefix:          "main",
		NotFoundBannerText:      "Google Maps can't find",
		ResultsForPrefix:        "Results for",
		SubtitleClass:           "fontBodyMedium",
		MoreReviewsActionSuffix: "reviewChart.moreReviews",
		ReviewsURLSubstring:     "listugcposts",
	}
}
