package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/gigbook/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Success(ctx, http.StatusCreated, gin.H{"message": "ok"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success flag to be true")
	}
	if resp.Error != nil {
		t.Fatal("expected no error information")
	}
}

func TestSuccessWithMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	SuccessWithMeta(ctx, http.StatusOK, []string{"a", "b"}, PageMeta(2, 4, 2))

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Meta == nil || resp.Meta.Offset != 4 || resp.Meta.Count != 2 {
		t.Fatalf("expected metadata to be serialised, got %+v", resp.Meta)
	}
	if !resp.Meta.HasMore {
		t.Fatal("a full page must report more results")
	}
}

func TestPageMetaShortPage(t *testing.T) {
	if meta := PageMeta(25, 0, 3); meta.HasMore {
		t.Fatalf("short page must not report more results: %+v", meta)
	}
	if meta := PageMeta(0, 0, 0); meta.HasMore {
		t.Fatal("zero limit never has more")
	}
}

func TestErrorRendersPolicyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	err := fmt.Errorf("invite service: dispatch: %w", appErrors.ErrPolicyViolation.WithDetails(map[string]any{
		"remaining_seconds": 3600,
	}))
	Error(ctx, err)

	if rec.Code != http.StatusLocked {
		t.Fatalf("expected status %d got %d", http.StatusLocked, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success flag to be false")
	}
	if resp.Error == nil || resp.Error.Code != appErrors.ErrPolicyViolation.Code {
		t.Fatalf("unexpected error payload: %+v", resp.Error)
	}
	if resp.Error.Details["remaining_seconds"] != float64(3600) {
		t.Fatalf("expected details to be rendered, got %v", resp.Error.Details)
	}
}

func TestErrorWithGenericError(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	Error(ctx, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != appErrors.ErrInternalServer.Code {
		t.Fatal("expected internal server error code")
	}
}
