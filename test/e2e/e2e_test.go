//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolveResult struct {
	Status  string `json:"status"`
	Stage   string `json:"stage"`
	Value   string `json:"value,omitempty"`
	EntryID string `json:"entry_id,omitempty"`
}

type entryResult struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Group      string  `json:"group"`
	Label      string  `json:"label"`
	Value      string  `json:"value,omitempty"`
	Payload    string  `json:"payload,omitempty"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
	UsageCount int64   `json:"usage_count"`
}

type createEntryResult struct {
	Entry  *entryResult `json:"entry,omitempty"`
	Stored bool         `json:"stored"`
}

type listEntriesResult struct {
	Entries []*entryResult `json:"entries"`
	Cursor  string         `json:"cursor,omitempty"`
	HasMore bool           `json:"has_more"`
}

func (e *E2ETestEnv) resolve(t *testing.T, label string) resolveResult {
	t.Helper()
	resp, err := e.Post("/resolve", map[string]string{"label": label}, e.APIKeyToken)
	require.NoError(t, err)

	var res resolveResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	return res
}

func (e *E2ETestEnv) confirm(t *testing.T, label, value string) entryResult {
	t.Helper()
	resp, err := e.Post("/confirm", map[string]string{"label": label, "value": value}, e.APIKeyToken)
	require.NoError(t, err)

	var entry entryResult
	require.NoError(t, json.Unmarshal(resp.Data, &entry))
	return entry
}

func (e *E2ETestEnv) addEntry(t *testing.T, body map[string]interface{}) createEntryResult {
	t.Helper()
	resp, err := e.Post("/entries", body, e.APIKeyToken)
	require.NoError(t, err)

	var res createEntryResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	return res
}

func TestE2E_Health(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := http.Get(env.ServerURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_AuthRequired(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, err := env.Post("/resolve", map[string]string{"label": "Email"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = env.Post("/resolve", map[string]string{"label": "Email"}, "fbk_0000000000000000000000000000000000000000000000000000000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestE2E_ConfirmAndResolve(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	entry := env.confirm(t, "Email Address", "jane@example.com")
	assert.True(t, entry.Verified)
	assert.Equal(t, "jane@example.com", entry.Value)
	assert.Equal(t, "emailaddress", entry.Group)

	res := env.resolve(t, "Email Address")
	assert.Equal(t, "value", res.Status)
	assert.Equal(t, "exact", res.Stage)
	assert.Equal(t, "jane@example.com", res.Value)
	assert.Equal(t, entry.ID, res.EntryID)
}

func TestE2E_Resolve_RefusesEssayPrompt(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	res := env.resolve(t, "Describe a challenge you overcame")
	assert.Equal(t, "no_match", res.Status)
	assert.Equal(t, "gate", res.Stage)
	assert.Empty(t, res.Value)
}

func TestE2E_Resolve_NoKnowledge(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	res := env.resolve(t, "Phone Number")
	assert.Equal(t, "no_match", res.Status)
	assert.Empty(t, res.Value)
}

func TestE2E_Resolve_PartialLabelMatch(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.confirm(t, "Graduation Year", "2026")

	// Decorated variant of the same field still hits via the normalized key.
	res := env.resolve(t, "Expected Graduation Year *")
	assert.Equal(t, "value", res.Status)
	assert.Equal(t, "2026", res.Value)
}

func TestE2E_Resolve_ConflictDefers(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	first := env.addEntry(t, map[string]interface{}{
		"label":      "Graduation Year",
		"value":      "2026",
		"confidence": 0.8,
		"provenance": "doc:transcript-1",
	})
	require.True(t, first.Stored)

	second := env.addEntry(t, map[string]interface{}{
		"label":      "Graduation Year",
		"value":      "2027",
		"confidence": 0.8,
		"provenance": "doc:essay-2",
	})
	require.True(t, second.Stored)

	res := env.resolve(t, "Graduation Year")
	assert.Equal(t, "deferred", res.Status)
	assert.Empty(t, res.Value)

	// Removing one contender leaves a single candidate, which answers.
	_, err := env.Delete("/entries/"+second.Entry.ID, env.APIKeyToken)
	require.NoError(t, err)

	res = env.resolve(t, "Graduation Year")
	assert.Equal(t, "value", res.Status)
	assert.Equal(t, "2026", res.Value)
}

func TestE2E_ExtractionSuppressedByFreshConfirmation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.confirm(t, "Email Address", "jane@example.com")

	res := env.addEntry(t, map[string]interface{}{
		"label":      "Email Address",
		"value":      "old@example.com",
		"confidence": 0.9,
		"provenance": "doc:resume-1",
	})
	assert.False(t, res.Stored)
	assert.Nil(t, res.Entry)

	// The confirmed answer still wins.
	resolved := env.resolve(t, "Email Address")
	assert.Equal(t, "value", resolved.Status)
	assert.Equal(t, "jane@example.com", resolved.Value)
}

func TestE2E_UsageFeedback(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	entry := env.confirm(t, "Email Address", "jane@example.com")

	_, err := env.Post("/resolve/feedback", map[string]string{"entry_id": entry.ID}, env.APIKeyToken)
	require.NoError(t, err)

	resp, err := env.Get("/entries/"+entry.ID, env.APIKeyToken)
	require.NoError(t, err)

	var got entryResult
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, int64(1), got.UsageCount)
}

func TestE2E_EntriesLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	created := env.addEntry(t, map[string]interface{}{
		"kind":       "experience",
		"group":      "internship",
		"label":      "Summer Internship",
		"payload":    "Built data pipelines at a fintech startup.",
		"confidence": 0.9,
		"provenance": "doc:resume-1",
	})
	require.True(t, created.Stored)
	require.NotNil(t, created.Entry)
	assert.Equal(t, "experience", created.Entry.Kind)
	assert.False(t, created.Entry.Verified)

	resp, err := env.Get("/entries/"+created.Entry.ID, env.APIKeyToken)
	require.NoError(t, err)
	var got entryResult
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "Summer Internship", got.Label)

	resp, err = env.Get("/entries/?kind=experience", env.APIKeyToken)
	require.NoError(t, err)
	var page listEntriesResult
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	require.Len(t, page.Entries, 1)
	assert.False(t, page.HasMore)

	_, err = env.Delete("/entries/"+created.Entry.ID, env.APIKeyToken)
	require.NoError(t, err)

	_, err = env.Get("/entries/"+created.Entry.ID, env.APIKeyToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestE2E_EntriesPagination(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	for i := 0; i < 5; i++ {
		created := env.addEntry(t, map[string]interface{}{
			"kind":    "freeform",
			"label":   fmt.Sprintf("Note %d", i),
			"payload": fmt.Sprintf("note body %d", i),
		})
		require.True(t, created.Stored)
	}

	resp, err := env.Get("/entries/?kind=freeform&limit=2", env.APIKeyToken)
	require.NoError(t, err)
	var page listEntriesResult
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Len(t, page.Entries, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.Cursor)

	seen := map[string]bool{}
	for _, e := range page.Entries {
		seen[e.ID] = true
	}

	resp, err = env.Get("/entries/?kind=freeform&limit=2&cursor="+page.Cursor, env.APIKeyToken)
	require.NoError(t, err)
	var next listEntriesResult
	require.NoError(t, json.Unmarshal(resp.Data, &next))
	assert.Len(t, next.Entries, 2)
	for _, e := range next.Entries {
		assert.False(t, seen[e.ID], "page overlap on entry %s", e.ID)
	}
}

func TestE2E_PurgeKind(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	for i := 0; i < 3; i++ {
		env.addEntry(t, map[string]interface{}{
			"kind":    "freeform",
			"label":   fmt.Sprintf("Note %d", i),
			"payload": "body",
		})
	}
	env.confirm(t, "Email Address", "jane@example.com")

	resp, err := env.Post("/entries/purge", map[string]string{"kind": "freeform"}, env.APIKeyToken)
	require.NoError(t, err)

	var purge struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &purge))
	assert.Equal(t, int64(3), purge.Deleted)

	// Confirmed answers are a different kind and survive the purge.
	res := env.resolve(t, "Email Address")
	assert.Equal(t, "value", res.Status)
}

func TestE2E_OwnerIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.confirm(t, "Email Address", "jane@example.com")

	// Second owner with their own key sees none of the first owner's data.
	ownerResp, err := env.Post("/owners", map[string]string{"name": "Other Owner"}, "")
	require.NoError(t, err)
	var other struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(ownerResp.Data, &other))

	keyResp, err := env.Post("/apikeys", map[string]string{"owner_id": other.ID, "name": "other-key"}, "")
	require.NoError(t, err)
	var key struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(keyResp.Data, &key))

	resp, err := env.Post("/resolve", map[string]string{"label": "Email Address"}, key.Token)
	require.NoError(t, err)
	var res resolveResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, "no_match", res.Status)
	assert.Empty(t, res.Value)
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	content := []byte("transcript body for e2e document test")

	initResp, err := env.Post("/documents/init", map[string]string{
		"filename":  "transcript.pdf",
		"mime_type": "application/pdf",
	}, env.APIKeyToken)
	require.NoError(t, err)

	var initData struct {
		DocumentID string `json:"document_id"`
		StorageKey string `json:"storage_key"`
		UploadURL  string `json:"upload_url"`
	}
	require.NoError(t, json.Unmarshal(initResp.Data, &initData))
	require.NotEmpty(t, initData.UploadURL)

	require.NoError(t, env.UploadFile(initData.UploadURL, content, "application/pdf"))

	completeResp, err := env.Post("/documents/complete", map[string]string{
		"document_id": initData.DocumentID,
		"storage_key": initData.StorageKey,
		"filename":    "transcript.pdf",
		"mime_type":   "application/pdf",
		"sha256":      SHA256Sum(content),
	}, env.APIKeyToken)
	require.NoError(t, err)

	var doc struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		SHA256   string `json:"sha256"`
	}
	require.NoError(t, json.Unmarshal(completeResp.Data, &doc))
	assert.Equal(t, initData.DocumentID, doc.ID)
	assert.Equal(t, SHA256Sum(content), doc.SHA256)

	listResp, err := env.Get("/documents/", env.APIKeyToken)
	require.NoError(t, err)
	var list struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(listResp.Data, &list))
	require.Len(t, list.Documents, 1)

	dlResp, err := env.Get("/documents/"+doc.ID+"/download", env.APIKeyToken)
	require.NoError(t, err)
	var dl struct {
		DownloadURL string `json:"download_url"`
	}
	require.NoError(t, json.Unmarshal(dlResp.Data, &dl))

	downloaded, err := env.DownloadFile(dl.DownloadURL)
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)

	_, err = env.Delete("/documents/"+doc.ID, env.APIKeyToken)
	require.NoError(t, err)

	_, err = env.Get("/documents/"+doc.ID+"/download", env.APIKeyToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestE2E_CLI_ConfirmResolveRoundtrip(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()
	env.BuildBinaries()

	out, err := env.RunFieldbank("", "confirm", "Email Address", "jane@example.com")
	require.NoError(t, err, "confirm failed: %s", out)

	out, err = env.RunFieldbank("", "resolve", "Email Address")
	require.NoError(t, err, "resolve failed: %s", out)
	assert.Contains(t, out, "jane@example.com")
}

func TestE2E_CLI_EntriesList(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()
	env.BuildBinaries()

	out, err := env.RunFieldbank("", "entries", "add", "Summer Internship",
		"--kind", "experience",
		"--payload", "Built data pipelines.")
	require.NoError(t, err, "entries add failed: %s", out)

	out, err = env.RunFieldbank("", "entries", "list", "--kind", "experience")
	require.NoError(t, err, "entries list failed: %s", out)
	assert.True(t, strings.Contains(out, "Summer Internship"), "list output missing entry: %s", out)
}
