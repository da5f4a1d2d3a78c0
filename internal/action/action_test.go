package action

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/retouch/internal/testutil"
)

func TestParseType(t *testing.T) {
	for _, want := range Types() {
		got, err := ParseType(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseType("sharpen")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestPayload_TypeTags(t *testing.T) {
	tests := []struct {
		payload Payload
		want    Type
	}{
		{Filter{Name: "sepia"}, TypeFilter},
		{Crop{Width: 1, Height: 1}, TypeCrop},
		{Resize{Width: 1, Height: 1}, TypeResize},
		{Rotate{Angle: 90}, TypeRotate},
		{Flip{Direction: "vertical"}, TypeFlip},
		{RestorePoint{Name: "a", PointID: 1}, TypeRestorePoint},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.payload.Type())
		assert.NoError(t, tt.payload.Validate())
		assert.NotEmpty(t, tt.payload.Describe())
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{"unknown filter", Filter{Name: "posterize"}},
		{"negative factor", Filter{Name: "brightness", Factor: -0.5}},
		{"crop zero width", Crop{Width: 0, Height: 3}},
		{"crop negative origin", Crop{X: -1, Width: 3, Height: 3}},
		{"resize zero", Resize{Width: 10}},
		{"resize wider than limit", Resize{Width: 100000, Height: 10}},
		{"resize area over limit", Resize{Width: 16384, Height: 16384}},
		{"crop beyond limit", Crop{X: 1 << 40, Width: 3, Height: 3}},
		{"blur infinite sigma", Filter{Name: "blur", Sigma: math.Inf(1)}},
		{"blur huge sigma", Filter{Name: "blur", Sigma: 1e308}},
		{"vintage huge sigma", Filter{Name: "vintage", Sigma: 1e308}},
		{"brightness infinite", Filter{Name: "brightness", Factor: math.Inf(1)}},
		{"rotate NaN", Rotate{Angle: math.NaN()}},
		{"flip sideways", Flip{Direction: "sideways"}},
		{"restore without id", RestorePoint{Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.payload.Validate(), ErrInvalidPayload)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Rotate 90°", Rotate{Angle: 90}.Describe())
	assert.Equal(t, "Rotate 12.5°", Rotate{Angle: 12.5}.Describe())
	assert.Equal(t, "Crop 20x10 at (1,2)", Crop{X: 1, Y: 2, Width: 20, Height: 10}.Describe())
	assert.Equal(t, "Resize to fit 8x8", Resize{Width: 8, Height: 8, KeepAspect: true}.Describe())
	assert.Equal(t, "Flip horizontal", Flip{Direction: "horizontal"}.Describe())
	assert.Equal(t, "Filter: brightness x1.2", Filter{Name: "brightness", Factor: 1.2}.Describe())
	assert.Equal(t, "Filter: pixelate 4px", Filter{Name: "pixelate", PixelSize: 4}.Describe())
	assert.Equal(t, "Filter: sepia", Filter{Name: "sepia"}.Describe())
	assert.Equal(t, "Restoration point: base", RestorePoint{Name: "base", PointID: 1}.Describe())
	assert.Equal(t, "Restored to: base", RestorePoint{Name: "base", PointID: 1, Restored: true}.Describe())
}

func TestEncodeDecode(t *testing.T) {
	payloads := []Payload{
		Filter{Name: "pixelate", PixelSize: 6},
		Crop{X: 3, Y: 4, Width: 50, Height: 60},
		Resize{Width: 640, Height: 480, KeepAspect: true},
		Rotate{Angle: -45.5, Expand: true},
		Flip{Direction: "horizontal"},
		RestorePoint{Name: "before edits", PointID: 9007199254740},
	}
	for _, p := range payloads {
		t.Run(string(p.Type()), func(t *testing.T) {
			data, err := Encode(p)
			require.NoError(t, err)
			assert.True(t, json.Valid(data))

			got, err := Decode(p.Type(), data)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestEncode_StableShape(t *testing.T) {
	data, err := Encode(Rotate{Angle: 90})
	require.NoError(t, err)
	assert.JSONEq(t, `{"angle":90}`, string(data))

	data, err = Encode(Crop{X: 1, Y: 2, Width: 3, Height: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":2,"width":3,"height":4}`, string(data))

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		data string
		want error
	}{
		{"unknown type", Type("sharpen"), `{}`, ErrUnknownAction},
		{"corrupt json", TypeRotate, `{"angle":`, ErrDecode},
		{"not an object", TypeRotate, `null`, ErrDecode},
		{"wrong field type", TypeCrop, `{"x":"left","y":0,"width":1,"height":1}`, ErrDecode},
		{"fails validation", TypeCrop, `{"x":0,"y":0,"width":0,"height":1}`, ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.typ, []byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_IgnoresUnknownKeys(t *testing.T) {
	p, err := Decode(TypeRotate, []byte(`{"angle":180,"quality":"high"}`))
	require.NoError(t, err)
	assert.Equal(t, Rotate{Angle: 180}, p)
}

func TestFromArgs(t *testing.T) {
	p, err := FromArgs(TypeRotate, map[string]any{"angle": "90", "expand": "true"})
	require.NoError(t, err)
	assert.Equal(t, Rotate{Angle: 90, Expand: true}, p)

	p, err = FromArgs(TypeFilter, map[string]any{"name": "brightness", "factor": 1.5})
	require.NoError(t, err)
	assert.Equal(t, Filter{Name: "brightness", Factor: 1.5}, p)

	_, err = FromArgs(TypeRotate, map[string]any{"angel": 90})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = FromArgs(TypeCrop, nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = FromArgs(Type("sharpen"), nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

type fakeSnapshots map[int64]image.Image

func (f fakeSnapshots) LoadSnapshot(_ context.Context, id int64) (image.Image, error) {
	img, ok := f[id]
	if !ok {
		return nil, errors.New("no such point")
	}
	return img, nil
}

type bogusPayload struct{ Rotate }

func TestCatalog_Apply(t *testing.T) {
	ctx := context.Background()
	src := testutil.Gradient(8, 4)
	snap := testutil.Gradient(3, 3)
	c := NewCatalog(fakeSnapshots{7: snap})

	out, err := c.Apply(ctx, src, Rotate{Angle: 90, Expand: true})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 8), out.Bounds().Size())

	out, err = c.Apply(ctx, src, Crop{X: 0, Y: 0, Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2, 2), out.Bounds().Size())

	out, err = c.Apply(ctx, src, Resize{Width: 4, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 2), out.Bounds().Size())

	out, err = c.Apply(ctx, src, Flip{Direction: "vertical"})
	require.NoError(t, err)
	assert.False(t, testutil.SamePixels(src, out))

	out, err = c.Apply(ctx, src, Filter{Name: "negative"})
	require.NoError(t, err)
	assert.False(t, testutil.SamePixels(src, out))

	out, err = c.Apply(ctx, nil, RestorePoint{Name: "p", PointID: 7})
	require.NoError(t, err)
	assert.True(t, testutil.SamePixels(snap, out))

	assert.True(t, testutil.SamePixels(testutil.Gradient(8, 4), src), "input must not be mutated")
}

func TestCatalog_ApplyFailures(t *testing.T) {
	ctx := context.Background()
	src := testutil.Gradient(4, 4)

	_, err := NewCatalog(nil).Apply(ctx, src, nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = NewCatalog(nil).Apply(ctx, src, bogusPayload{Rotate{Angle: 1}})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = NewCatalog(nil).Apply(ctx, src, Crop{Width: -1, Height: 1})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = NewCatalog(nil).Apply(ctx, nil, Rotate{Angle: 90})
	assert.Error(t, err)

	_, err = NewCatalog(nil).Apply(ctx, src, RestorePoint{Name: "x", PointID: 1})
	assert.Error(t, err)

	_, err = NewCatalog(fakeSnapshots{}).Apply(ctx, src, RestorePoint{Name: "x", PointID: 1})
	assert.Error(t, err)

	_, err = NewCatalog(nil).Apply(ctx, src, Crop{X: 50, Y: 50, Width: 1, Height: 1})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewCatalog(nil).Apply(cancelled, src, Rotate{Angle: 90})
	assert.ErrorIs(t, err, context.Canceled)
}
