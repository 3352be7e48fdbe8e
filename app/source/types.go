package source

const (
	TypeHTML   = "html"
	TypeFeed   = "feed"
	TypeJSON   = "json"
	TypeStatic = "static"
)

type Config struct {
	Name      string           // Derived from filename (without .yml extension)
	Type      string           `yaml:"type" validate:"required,oneof=html feed json static"`
	URL       string           `yaml:"url" validate:"omitempty,url"`
	BaseURL   string           `yaml:"base_url" validate:"omitempty,url"` // defaults to the origin of URL
	Organizer string           `yaml:"organizer"`
	EventType string           `yaml:"event_type"`
	Location  string           `yaml:"location"`
	Tags      []string         `yaml:"tags"`
	Settings  ConfigSettings   `yaml:"settings"`
	Selectors ConfigSelectors  `yaml:"selectors"`
	JSON      ConfigJSON       `yaml:"json"`
	Events    []map[string]any `yaml:"events"` // static sources only
	Filters   []ConfigFilter   `yaml:"filters" validate:"dive"`
}

type ConfigSettings struct {
	Enabled              bool `yaml:"enabled"`
	Timeout              int  `yaml:"timeout" validate:"gte=0"` // seconds
	MaxItems             int  `yaml:"max_items" validate:"gte=0"`
	DescriptionMaxLength int  `yaml:"description_max_length" validate:"gte=0"` // 0 uses the global default
	ExtractDetails       bool `yaml:"extract_details"`                          // fill missing descriptions from detail pages
}

type ConfigSelectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Location    string `yaml:"location"`
	Image       string `yaml:"image"`
}

type ConfigJSON struct {
	ItemsPath    string            `yaml:"items_path"`
	AuthTokenEnv string            `yaml:"auth_token_env"`
	Fields       map[string]string `yaml:"fields"` // candidate key -> dotted path within an item
}

type ConfigFilter struct {
	Field    string   `yaml:"field" validate:"oneof=title description location organizer tags"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
