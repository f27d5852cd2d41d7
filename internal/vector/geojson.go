package vector

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jengzang/regrowth-dataset/internal/spatial"
	"github.com/paulmach/orb/geojson"
)

func init() {
	RegisterReader(".geojson", ReadGeoJSON)
	RegisterReader(".json", ReadGeoJSON)
	RegisterWriter(".geojson", WriteGeoJSON)
	RegisterWriter(".json", WriteGeoJSON)
}

// ReadGeoJSON loads a FeatureCollection. A legacy "crs" member sets the CRS;
// without one the data is taken as EPSG:4326.
func ReadGeoJSON(path string, _ ReadOptions) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	crs := spatial.WGS84
	if member, ok := fc.ExtraMembers["crs"]; ok {
		crs, err = parseCRSMember(member)
		if err != nil {
			return nil, err
		}
	}

	layer := &Layer{CRS: crs, Features: make([]Feature, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		layer.Features = append(layer.Features, Feature{
			Geometry:   f.Geometry,
			Properties: stringProperties(f.Properties),
		})
	}
	return layer, nil
}

// WriteGeoJSON writes the layer as a FeatureCollection carrying a "crs" member
func WriteGeoJSON(path string, layer *Layer) error {
	fc := geojson.NewFeatureCollection()
	if !layer.CRS.IsZero() {
		fc.ExtraMembers = geojson.Properties{"crs": crsMember(layer.CRS)}
	}
	for _, f := range layer.Features {
		gf := geojson.NewFeature(f.Geometry)
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode geojson: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func crsMember(crs spatial.CRS) map[string]interface{} {
	name := crs.Def
	if crs.Code != 0 {
		name = "urn:ogc:def:crs:EPSG::" + strconv.Itoa(crs.Code)
	}
	return map[string]interface{}{
		"type":       "name",
		"properties": map[string]interface{}{"name": name},
	}
}

func parseCRSMember(member interface{}) (spatial.CRS, error) {
	m, ok := member.(map[string]interface{})
	if !ok {
		return spatial.CRS{}, fmt.Errorf("%w: malformed crs member", spatial.ErrUnknownCRS)
	}
	props, _ := m["properties"].(map[string]interface{})
	name, _ := props["name"].(string)
	return spatial.ParseCRS(name)
}

func stringProperties(props geojson.Properties) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		switch v := v.(type) {
		case nil:
			// missing and null are the same thing downstream
		case string:
			out[k] = v
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
