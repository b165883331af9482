package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/layer"
)

// Record is the metadata of one layer in canvas space. Export scale never
// appears here: records describe the editable source, not the artifacts.
type Record struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Scale   float64 `json:"scale"`
	ZIndex  int     `json:"z_index"`
	Visible bool    `json:"visible"`
}

// Records is the metadata document, one record per layer in z-order.
type Records []Record

// NewRecords builds the metadata of a layer snapshot, hidden layers included.
func NewRecords(views []layer.View) Records {
	out := make(Records, len(views))
	for i, v := range views {
		out[i] = Record{
			ID:      v.ID,
			Name:    v.Name,
			X:       v.Position.X,
			Y:       v.Position.Y,
			Scale:   v.Scale,
			ZIndex:  v.Z,
			Visible: v.Visible,
		}
	}
	return out
}

// Marshal encodes the records as indented JSON.
func (rs Records) Marshal() ([]byte, error) {
	if rs == nil {
		rs = Records{}
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return append(data, '\n'), nil
}

// States converts the records back into layer states for Store.Restore.
func (rs Records) States() []layer.State {
	out := make([]layer.State, len(rs))
	for i, r := range rs {
		out[i] = layer.State{
			ID:       r.ID,
			Name:     r.Name,
			Position: image.Pt(r.X, r.Y),
			Scale:    r.Scale,
			Z:        r.ZIndex,
			Visible:  r.Visible,
		}
	}
	return out
}

// Match pairs records with the layers of a snapshot: by ID first, then by
// name for records whose ID is unknown (metadata from another session).
// Each layer is matched at most once. The returned states carry the matched
// layer's ID; unmatched records are returned separately.
func (rs Records) Match(views []layer.View) (matched []layer.State, unmatched Records) {
	byID := make(map[string]bool, len(views))
	for _, v := range views {
		byID[v.ID] = true
	}
	used := make(map[string]bool, len(views))
	states := rs.States()

	var pending []int
	for i, st := range states {
		if byID[st.ID] && !used[st.ID] {
			used[st.ID] = true
			matched = append(matched, st)
			continue
		}
		pending = append(pending, i)
	}
	for _, i := range pending {
		st := states[i]
		found := false
		for _, v := range views {
			if !used[v.ID] && v.Name == st.Name {
				used[v.ID] = true
				st.ID = v.ID
				matched = append(matched, st)
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, rs[i])
		}
	}
	return matched, unmatched
}

// Validate checks every record for values a store would reject.
func (rs Records) Validate() error {
	for i, r := range rs {
		if r.ID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "record %d has no id", i)
		}
		if err := errors.ValidateLayerName(r.Name); err != nil {
			return err
		}
		if math.IsNaN(r.Scale) || math.IsInf(r.Scale, 0) || r.Scale <= 0 {
			return errors.New(errors.ErrCodeInvalidTransform, "record %q has invalid scale %v", r.Name, r.Scale)
		}
	}
	return nil
}

// ReadMetadata decodes and validates a metadata document.
func ReadMetadata(r io.Reader) (Records, error) {
	var rs Records
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode metadata")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// ReadArchiveMetadata extracts the metadata document from a ZIP archive.
func ReadArchiveMetadata(zipData []byte) (Records, error) {
	entries, err := archive.ReadZip(zipData)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read archive")
	}
	e, ok := archive.Find(entries, MetadataName)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "archive has no %s", MetadataName)
	}
	return ReadMetadata(bytes.NewReader(e.Data))
}
