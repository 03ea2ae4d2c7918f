package ai

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// score is a 0-100 value as models actually send it: an integer, a float
// such as 87.5, or a quoted number. Anything unreadable decodes as zero so
// the rest of the reply survives.
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*s = 0
		return nil
	}
	*s = score(f)
	return nil
}

// value rounds to the nearest integer and clamps to 0-100.
func (s score) value() int {
	return normalize.Clamp(int(math.Round(math.Max(0, math.Min(100, float64(s))))))
}

func (c *Classification) UnmarshalJSON(b []byte) error {
	type plain Classification
	aux := struct {
		*plain
		Confidence score `json:"confidence"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Confidence = aux.Confidence.value()
	return nil
}

func (f *FitScore) UnmarshalJSON(b []byte) error {
	type plain FitScore
	aux := struct {
		*plain
		Score score `json:"score"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	f.Score = aux.Score.value()
	return nil
}

func (d *DuplicateResolution) UnmarshalJSON(b []byte) error {
	type plain DuplicateResolution
	aux := struct {
		*plain
		Confidence score `json:"confidence"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.Confidence = aux.Confidence.value()
	return nil
}

func (c *Contact) UnmarshalJSON(b []byte) error {
	type plain Contact
	aux := struct {
		*plain
		Confidence score `json:"confidence"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Confidence = aux.Confidence.value()
	return nil
}
