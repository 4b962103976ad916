package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"
)

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string                    { return f.name }
func (f *fakeTool) Description() string             { return "fake tool " + f.name }
func (f *fakeTool) Schema() map[string]interface{}  { return map[string]interface{}{"type": "object"} }
func (f *fakeTool) Call(ctx context.Context, args []byte) ([]byte, error) {
	return []byte(`{"ok":true}`), nil
}

func TestToolRegistryRegisterAndLookup(t *testing.T) {
	is := is.New(t)
	r := NewToolRegistry()

	is.NoErr(r.Register(&fakeTool{name: "get_weather"}))

	tool, ok := r.Lookup("get_weather")
	is.True(ok)
	is.Equal(tool.Name(), "get_weather")

	_, ok = r.Lookup("missing")
	is.True(!ok)
}

func TestToolRegistryRejectsDuplicateName(t *testing.T) {
	is := is.New(t)
	r := NewToolRegistry()

	is.NoErr(r.Register(&fakeTool{name: "dup"}))
	err := r.Register(&fakeTool{name: "dup"})
	is.True(err != nil)
	is.True(errors.Is(err, ErrToolAlreadyRegistered))
}

func TestToolRegistryRemoveAndCount(t *testing.T) {
	is := is.New(t)
	r := NewToolRegistry()

	is.NoErr(r.Register(&fakeTool{name: "a"}))
	is.NoErr(r.Register(&fakeTool{name: "b"}))
	is.Equal(r.Count(), 2)

	is.True(r.Remove("a"))
	is.True(!r.Remove("a"))
	is.Equal(r.Count(), 1)
}

func TestActionString(t *testing.T) {
	is := is.New(t)
	is.Equal(ActionResponse.String(), "RESPONSE")
	is.Equal(ActionReqLLM.String(), "REQLLM")
	is.Equal(ActionNotFound.String(), "NOTFOUND")
	is.Equal(ActionError.String(), "ERROR")
}
