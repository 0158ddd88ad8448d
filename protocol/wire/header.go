// header.go specifies the JSON headers exchanged ahead of any item content.
package wire

import "strconv"

// TransferHeader opens a transfer. Count and Size travel as decimal strings
// so that 64-bit values survive peers that parse JSON numbers as doubles.
type TransferHeader struct {
	Name  string `json:"name"`
	Count string `json:"count"`
	Size  string `json:"size"`
}

func NewTransferHeader(name string, count int, size int64) TransferHeader {
	return TransferHeader{
		Name:  name,
		Count: strconv.Itoa(count),
		Size:  strconv.FormatInt(size, 10),
	}
}

// Totals parses the decimal string fields. Unparseable values map to zero
// rather than an error, matching what legacy peers put on the wire.
func (h TransferHeader) Totals() (count int, size int64) {
	count, _ = strconv.Atoi(h.Count)
	size, _ = strconv.ParseInt(h.Size, 10, 64)
	return count, size
}

// ItemType resolves the type of an item header. Modern peers declare an
// explicit "type", legacy peers are recognized by their "directory" key, and
// everything else is a plain file. Wire compatibility with older versions
// depends on this exact fallback order.
func ItemType(props map[string]interface{}) string {
	if v, ok := props["type"]; ok {
		t, _ := v.(string)
		return t
	}
	if _, ok := props["directory"]; ok {
		return "directory"
	}
	return "file"
}
