package memorysearch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeRESTClient struct {
	lastOpts restclient.CallOptions
	results  []models.MemorySearchResult
	saved    models.Memory
}

func (f *fakeRESTClient) Do(ctx context.Context, opts restclient.CallOptions, out any) error {
	f.lastOpts = opts
	switch opts.Method {
	case "POST":
		if opts.Path == "/api/memory/search" {
			*out.(*[]models.MemorySearchResult) = f.results
		} else {
			f.saved = opts.Body.(models.Memory)
			f.saved.ID = "mem-1"
			*out.(*models.Memory) = f.saved
		}
	}
	return nil
}

func TestSearchToolFormatsResults(t *testing.T) {
	rest := &fakeRESTClient{results: []models.MemorySearchResult{
		{Memory: models.Memory{Text: "likes espresso"}, Score: 0.91},
	}}
	tool := NewSearchTool("memory_search", "search memories", rest)

	input, _ := json.Marshal(SearchInput{Query: "coffee preferences"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "likes espresso")
	require.Equal(t, "POST", rest.lastOpts.Method)
}

func TestSearchToolEmptyResults(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewSearchTool("memory_search", "search memories", rest)

	input, _ := json.Marshal(SearchInput{Query: "anything"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Contains(t, result.Content, "No matching memories")
}

func TestSearchToolRequiresQuery(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewSearchTool("memory_search", "search memories", rest)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSaveToolPersistsMemory(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewSaveTool("memory_save", "save a memory", rest)

	input, _ := json.Marshal(SaveInput{Text: "prefers terse replies", Importance: 7})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "prefers terse replies")
	require.Equal(t, 7, rest.saved.Importance)
	require.Equal(t, models.MemoryTypeUserFact, rest.saved.MemoryType)
}

func TestSaveToolRequiresText(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewSaveTool("memory_save", "save a memory", rest)

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestSaveToolClampsImportance(t *testing.T) {
	rest := &fakeRESTClient{}
	tool := NewSaveTool("memory_save", "save a memory", rest)

	input, _ := json.Marshal(SaveInput{Text: "huge fact", Importance: 99})
	_, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 10, rest.saved.Importance)
}
