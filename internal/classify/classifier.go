package classify

// Category is the disposal category assigned to a detected waste item.
type Category string

const (
	Recyclable    Category = "Recyclable"
	NonRecyclable Category = "Non-Recyclable"
	Hazardous     Category = "Hazardous"
	Unknown       Category = "Unknown"
)

// Table lists the detection labels belonging to each disposal category. It is
// configuration data, not code: the defaults below match the label set the
// detection model was trained on, and a deployment can swap the whole table
// out through config without touching the classifier.
type Table struct {
	Recyclable    []string `json:"recyclable"`
	NonRecyclable []string `json:"non_recyclable"`
	Hazardous     []string `json:"hazardous"`
}

// DefaultTable returns the built-in label table.
func DefaultTable() Table {
	return Table{
		Recyclable: []string{
			"cardboard_box", "can", "plastic_bottle_cap", "plastic_bottle", "reuseable_paper",
		},
		NonRecyclable: []string{
			"plastic_bag", "scrap_paper", "stick", "plastic_cup", "snack_bag",
			"plastic_box", "straw", "plastic_cup_lid", "scrap_plastic", "cardboard_bowl",
			"plastic_cultery",
		},
		Hazardous: []string{
			"battery", "chemical_spray_can", "chemical_plastic_bottle", "chemical_plastic_gallon",
			"light_bulb", "paint_bucket",
		},
	}
}

// Classifier maps detection labels to disposal categories by set membership.
type Classifier struct {
	categories map[string]Category
}

// NewClassifier builds a Classifier from the given label table.
func NewClassifier(table Table) *Classifier {
	categories := make(map[string]Category)
	for _, label := range table.Recyclable {
		categories[label] = Recyclable
	}
	for _, label := range table.NonRecyclable {
		categories[label] = NonRecyclable
	}
	for _, label := range table.Hazardous {
		categories[label] = Hazardous
	}
	return &Classifier{categories: categories}
}

// Classify returns the category for a label, or Unknown for any label not in
// the table. It never fails.
func (c *Classifier) Classify(label string) Category {
	if category, ok := c.categories[label]; ok {
		return category
	}
	return Unknown
}
