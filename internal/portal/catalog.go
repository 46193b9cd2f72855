package portal

import "sort"

// Descriptor describes one supported portal: its capabilities and, for
// api-mode integrations, the base URL of its listings API.
type Descriptor struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	SupportsFeed bool   `json:"supports_feed"`
	SupportsAPI  bool   `json:"supports_api"`
	BaseURL      string `json:"-"`
}

// SupportsMode reports whether the portal supports the given integration mode.
func (d Descriptor) SupportsMode(mode string) bool {
	switch mode {
	case "feed":
		return d.SupportsFeed
	case "api":
		return d.SupportsAPI
	default:
		return false
	}
}

var catalog = map[string]Descriptor{
	"imovirtual": {
		Key:          "imovirtual",
		Label:        "Imovirtual",
		SupportsFeed: true,
		SupportsAPI:  true,
		BaseURL:      "https://api.imovirtual.com/v1",
	},
	"idealista": {
		Key:          "idealista",
		Label:        "Idealista",
		SupportsFeed: true,
		SupportsAPI:  true,
		BaseURL:      "https://api.idealista.com/v1",
	},
	"casayes": {
		Key:          "casayes",
		Label:        "CASA YES",
		SupportsFeed: true,
		SupportsAPI:  false,
	},
	"custojusto": {
		Key:          "custojusto",
		Label:        "CustoJusto",
		SupportsFeed: false,
		SupportsAPI:  true,
		BaseURL:      "https://api.custojusto.pt/v2",
	},
}

// Lookup returns the descriptor for a provider key.
func Lookup(key string) (Descriptor, bool) {
	d, ok := catalog[key]
	return d, ok
}

// Known reports whether key names a supported portal.
func Known(key string) bool {
	_, ok := catalog[key]
	return ok
}

// All returns every descriptor sorted by key, for the provider listing endpoint.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
