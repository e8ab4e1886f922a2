package triage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// graphBaseURL is the Microsoft Graph v1.0 root the cloud probe talks to.
const graphBaseURL = "https://graph.microsoft.com/v1.0"

// ProbeResult reports whether a package opened cleanly in the web host's
// workbook backend, and which step failed if not.
type ProbeResult struct {
	Success    bool
	StatusCode int
	Step       string // step name, or "complete"
	Worksheets []string
	Error      string
	Raw        map[string]any
}

func probeAPI(ctx context.Context, client *http.Client, method, url, token string, body any, extraHeaders map[string]string) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = map[string]any{"raw": string(raw)}
		}
	}
	return resp.StatusCode, payload, nil
}

func probeUpload(ctx context.Context, client *http.Client, token, filePath, remoteName string) (int, map[string]any, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, nil, err
	}
	url := fmt.Sprintf("%s/me/drive/root:/%s:/content", graphBaseURL, remoteName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			payload = map[string]any{"raw": string(raw)}
		}
	}
	return resp.StatusCode, payload, nil
}

// ProbeByItem probes a file already present on OneDrive, identified by
// drive and item id.
func ProbeByItem(ctx context.Context, client *http.Client, token, driveID, itemID string) (*ProbeResult, error) {
	base := fmt.Sprintf("%s/drives/%s/items/%s/workbook", graphBaseURL, driveID, itemID)
	return runProbe(ctx, client, token, base)
}

// ProbeByShareURL probes a file via a share link (e.g. a 1drv.ms URL).
func ProbeByShareURL(ctx context.Context, client *http.Client, token, shareURL string) (*ProbeResult, error) {
	shareID := "u!" + strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(shareURL)), "=")
	base := fmt.Sprintf("%s/shares/%s/driveItem/workbook", graphBaseURL, shareID)
	return runProbe(ctx, client, token, base)
}

// ProbeUploadAndTest uploads localPath to the OneDrive root, then probes it.
// remoteName defaults to the file's base name.
func ProbeUploadAndTest(ctx context.Context, client *http.Client, token, localPath, remoteName string) (*ProbeResult, error) {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	code, uploadResp, err := probeUpload(ctx, client, token, localPath, remoteName)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return &ProbeResult{Success: false, StatusCode: code, Step: "upload", Error: truncate(fmt.Sprint(uploadResp), 500), Raw: uploadResp}, nil
	}
	itemID, _ := uploadResp["id"].(string)
	driveID := ""
	if pr, ok := uploadResp["parentReference"].(map[string]any); ok {
		driveID, _ = pr["driveId"].(string)
	}
	if itemID == "" || driveID == "" {
		return &ProbeResult{
			Success: false, StatusCode: code, Step: "upload",
			Error: "Upload succeeded but driveId/itemId missing in response.", Raw: uploadResp,
		}, nil
	}
	base := fmt.Sprintf("%s/drives/%s/items/%s/workbook", graphBaseURL, driveID, itemID)
	return runProbe(ctx, client, token, base)
}

func runProbe(ctx context.Context, client *http.Client, token, workbookBaseURL string) (*ProbeResult, error) {
	code, ses, err := probeAPI(ctx, client, http.MethodPost, workbookBaseURL+"/createSession", token,
		map[string]any{"persistChanges": false}, nil)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return &ProbeResult{Success: false, StatusCode: code, Step: "createSession", Error: truncate(fmt.Sprint(ses), 500), Raw: ses}, nil
	}
	sessionID, _ := ses["id"].(string)
	if sessionID == "" {
		return &ProbeResult{Success: false, StatusCode: code, Step: "createSession", Error: "No session id in response.", Raw: ses}, nil
	}

	sessionHeaders := map[string]string{"workbook-session-id": sessionID}

	code, ws, err := probeAPI(ctx, client, http.MethodGet, workbookBaseURL+"/worksheets?$select=name", token, nil, sessionHeaders)
	if err != nil {
		return nil, err
	}
	if code >= 400 {
		return &ProbeResult{Success: false, StatusCode: code, Step: "listWorksheets", Error: truncate(fmt.Sprint(ws), 500), Raw: ws}, nil
	}

	var names []string
	if values, ok := ws["value"].([]any); ok {
		for _, v := range values {
			if m, ok := v.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
	}

	_, _, _ = probeAPI(ctx, client, http.MethodDelete, workbookBaseURL+"/sessions/"+sessionID, token, nil, sessionHeaders)

	return &ProbeResult{
		Success: true, StatusCode: 200, Step: "complete",
		Worksheets: names,
		Raw:        map[string]any{"worksheet_count": len(names)},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
