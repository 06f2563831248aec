package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		xform   string
		value   string
		params  map[string]string
		want    string
		wantErr bool
	}{
		{"trim", "trim_whitespace", "  a b  ", nil, "a b", false},
		{"upper", "uppercase", "ct scan", nil, "CT SCAN", false},
		{"lower", "lowercase", "Nodule", nil, "nodule", false},
		{"date pinned layout", "parse_date", "12/25/2004", map[string]string{"layout": "01/02/2006", "out": "2006-01-02"}, "2004-12-25", false},
		{"date auto layout", "parse_date", "2004-12-25", map[string]string{"out": "20060102"}, "20041225", false},
		{"date unparseable", "parse_date", "yesterday", nil, "yesterday", true},
		{"regex group", "regex_extract", "nodule N17 seen", map[string]string{"pattern": `N(\d+)`}, "17", false},
		{"regex no match", "regex_extract", "clear", map[string]string{"pattern": `N(\d+)`}, "clear", true},
		{"numbers", "extract_numbers", "approx 4.5 mm", nil, "4.5", false},
		{"split", "split_string", "a|b|c", map[string]string{"sep": "|", "index": "1"}, "b", false},
		{"split out of range", "split_string", "a|b", map[string]string{"sep": "|", "index": "9"}, "a|b", true},
		{"concat", "concatenate", "1.2.3", map[string]string{"prefix": "uid:"}, "uid:1.2.3", false},
		{"lookup hit", "lookup", "1", map[string]string{"1": "benign", "5": "malignant"}, "benign", false},
		{"lookup default", "lookup", "9", map[string]string{"1": "benign", "default": "unknown"}, "unknown", false},
		{"lookup miss", "lookup", "9", map[string]string{"1": "benign"}, "9", true},
		{"unit convert", "unit_convert", "2.5", map[string]string{"factor": "10"}, "25", false},
		{"unit convert non-numeric", "unit_convert", "big", map[string]string{"factor": "10"}, "big", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.apply(tt.xform, tt.value, tt.params)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_HasAndNames(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Has("trim_whitespace"))
	assert.False(t, r.Has("reticulate_splines"))
	assert.Contains(t, r.Names(), "parse_date")
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := NewRegistry()
	err := r.Register("shout", func(v string, _ map[string]string) (string, error) {
		return v + "!", nil
	})
	require.NoError(t, err)

	got, err := r.apply("shout", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello!", got)

	assert.Error(t, r.Register("shout", func(v string, _ map[string]string) (string, error) {
		return v, nil
	}))
	assert.Error(t, r.Register("", nil))
}
