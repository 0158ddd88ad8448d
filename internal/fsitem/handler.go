package fsitem

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/caravelhq/caravel/internal/item"
)

// Handler reconstructs file and directory items under a destination root.
type Handler struct {
	Dest      string
	Collision Collision
}

// Register routes both filesystem item types to h.
func Register(r *item.Registry, h *Handler) {
	r.Register("file", h)
	r.Register("directory", h)
}

func (h *Handler) CreateItem(typ string, props map[string]interface{}) (item.Item, error) {
	name, err := sanitizeName(props["name"])
	if err != nil {
		return nil, err
	}
	switch typ {
	case "file":
		return &File{
			name:      name,
			size:      propSize(props["size"]),
			dest:      h.Dest,
			collision: h.Collision,
		}, nil
	case "directory":
		return &Directory{name: name, dest: h.Dest}, nil
	default:
		return nil, fmt.Errorf("unsupported item type %q", typ)
	}
}

// sanitizeName validates a wire item name so that a peer cannot write
// outside the destination root.
func sanitizeName(v interface{}) (string, error) {
	name, _ := v.(string)
	if name == "" {
		return "", fmt.Errorf("item name missing")
	}
	cleaned := path.Clean(name)
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("illegal item name %q", name)
	}
	return cleaned, nil
}

// propSize parses the declared item size. Modern peers send a decimal
// string; legacy peers may send a JSON number. Anything unparseable counts
// as zero.
func propSize(v interface{}) int64 {
	switch s := v.(type) {
	case string:
		size, _ := strconv.ParseInt(s, 10, 64)
		return size
	case float64:
		return int64(s)
	default:
		return 0
	}
}
