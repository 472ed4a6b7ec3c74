package detect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// cocoNames is the default class table, matching the 80-class COCO layout
// most YOLO exports use.
var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag",
	"tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant",
	"bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// Classes maps model class ids to human-readable names. The mapping is
// total: ids outside the table resolve to a synthesized placeholder so every
// id the model can emit has a name.
type Classes struct {
	names []string
}

// DefaultClasses returns the COCO-80 class table.
func DefaultClasses() Classes {
	return Classes{names: cocoNames}
}

// NewClasses builds a table from an explicit name list.
func NewClasses(names []string) Classes {
	return Classes{names: names}
}

// LoadClasses reads one class name per line from a file, ignoring blank
// lines. Line order defines class ids starting at 0.
func LoadClasses(path string) (Classes, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-provided class table path is expected
	if err != nil {
		return Classes{}, fmt.Errorf("open class table: %w", err)
	}
	defer func() { _ = f.Close() }()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return Classes{}, fmt.Errorf("read class table: %w", err)
	}
	if len(names) == 0 {
		return Classes{}, fmt.Errorf("class table %s is empty", path)
	}
	return Classes{names: names}, nil
}

// Len returns the number of named classes.
func (c Classes) Len() int { return len(c.names) }

// Name resolves a class id to its name.
func (c Classes) Name(id int) string {
	if id >= 0 && id < len(c.names) {
		return c.names[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// Names resolves a list of ids to a parallel list of names.
func (c Classes) Names(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.Name(id)
	}
	return out
}
