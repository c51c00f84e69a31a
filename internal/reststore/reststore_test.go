package reststore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/pkg/models"
)

type fakeRESTClient struct {
	lastOpts  restclient.CallOptions
	calls     []restclient.CallOptions
	messages  []models.Message
	summary   *models.UserSummary
	summaryErr error
	saved     models.Message
	results   []models.MemorySearchResult
	err       error
}

func (f *fakeRESTClient) Do(ctx context.Context, opts restclient.CallOptions, out any) error {
	f.lastOpts = opts
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return f.err
	}
	switch opts.EndpointTemplate {
	case "/api/messages":
		if opts.Method == "GET" {
			*out.(*[]models.Message) = f.messages
		} else {
			*out.(*models.Message) = f.saved
		}
	case "/api/users/{user_id}/assistants/{assistant_id}/summary":
		if f.summaryErr != nil {
			return f.summaryErr
		}
		if f.summary != nil {
			*out.(*models.UserSummary) = *f.summary
		}
	case "/api/memory/search":
		*out.(*[]models.MemorySearchResult) = f.results
	}
	return nil
}

func TestLoadHistoryOrdersMessagesByID(t *testing.T) {
	rest := &fakeRESTClient{
		messages: []models.Message{{ID: 3, Content: "c"}, {ID: 1, Content: "a"}, {ID: 2, Content: "b"}},
		summary:  &models.UserSummary{SummaryText: "prior"},
	}
	store := NewMessageStore(rest)

	history, summary, err := store.LoadHistory(context.Background(), 1, "asst-1", 50)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, []int64{history[0].ID, history[1].ID, history[2].ID})
	require.Equal(t, "prior", summary.SummaryText)
}

func TestLoadHistoryTreatsMissingSummaryAsNone(t *testing.T) {
	rest := &fakeRESTClient{
		messages:   []models.Message{{ID: 1, Content: "a"}},
		summaryErr: &restclient.ServiceResponseError{Status: 404, Detail: "not found"},
	}
	store := NewMessageStore(rest)

	history, summary, err := store.LoadHistory(context.Background(), 1, "asst-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, summary)
}

func TestSaveMessageReturnsAssignedID(t *testing.T) {
	rest := &fakeRESTClient{saved: models.Message{ID: 42, Content: "hi"}}
	store := NewMessageStore(rest)

	saved, err := store.SaveMessage(context.Background(), models.Message{Content: "hi"})
	require.NoError(t, err)
	require.Equal(t, int64(42), saved.ID)
	require.Equal(t, "/api/messages", rest.lastOpts.Path)
}

func TestUpdateStatusPatchesMessageEndpoint(t *testing.T) {
	rest := &fakeRESTClient{}
	store := NewMessageStore(rest)

	err := store.UpdateStatus(context.Background(), 7, models.MessageStatusProcessed)
	require.NoError(t, err)
	require.Equal(t, "PATCH", rest.lastOpts.Method)
	require.Equal(t, "/api/messages/7", rest.lastOpts.Path)
}

func TestSaveSummaryPostsToSummariesEndpoint(t *testing.T) {
	rest := &fakeRESTClient{}
	store := NewMessageStore(rest)

	err := store.SaveSummary(context.Background(), models.UserSummary{SummaryText: "x"})
	require.NoError(t, err)
	require.Equal(t, "/api/user-summaries", rest.lastOpts.Path)
}

func TestMemoryClientSearchReturnsResults(t *testing.T) {
	rest := &fakeRESTClient{results: []models.MemorySearchResult{{Score: 0.9}}}
	client := NewMemoryClient(rest)

	results, err := client.Search(context.Background(), models.MemorySearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
