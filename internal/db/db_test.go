// Package db provides integration tests for the metadata store.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/mgrunwald/docdex/internal/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// mustCreateScope creates a scope or fails the test.
func mustCreateScope(t *testing.T, name string) *models.Scope {
	t.Helper()
	scope, err := testDB.CreateScope(context.Background(), models.ScopeInput{
		Name: name,
		Kind: "brand",
	})
	if err != nil {
		t.Fatalf("CreateScope(%q) failed: %v", name, err)
	}
	return scope
}

func TestCreateAndGetScope(t *testing.T) {
	ctx := context.Background()

	created := mustCreateScope(t, "Bosch")

	got, err := testDB.GetScopeByName(ctx, "Bosch")
	if err != nil {
		t.Fatalf("GetScopeByName failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetScopeByName returned nil for existing scope")
	}
	if got.Name != created.Name {
		t.Errorf("scope name = %q, want %q", got.Name, created.Name)
	}
	if got.Kind != "brand" {
		t.Errorf("scope kind = %q, want brand", got.Kind)
	}
}

func TestGetScopeByName_NotFound(t *testing.T) {
	got, err := testDB.GetScopeByName(context.Background(), "no-such-brand")
	if err != nil {
		t.Fatalf("GetScopeByName failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing scope, got %+v", got)
	}
}

func TestCreateDocument_UniquePerScopeAndTitle(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "Miele")
	scopeID := models.MustRecordIDString(scope.ID)

	_, err := testDB.CreateDocument(ctx, models.DocumentInput{
		ScopeID:  scopeID,
		Title:    "WM14 manual",
		FileName: "WM14 manual.pdf",
		Pages:    120,
		Chunks:   340,
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	_, err = testDB.CreateDocument(ctx, models.DocumentInput{
		ScopeID:  scopeID,
		Title:    "WM14 manual",
		FileName: "WM14 manual.pdf",
	})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate insert error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetDocumentByTitle(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "Siemens")
	scopeID := models.MustRecordIDString(scope.ID)

	_, err := testDB.CreateDocument(ctx, models.DocumentInput{
		ScopeID:  scopeID,
		Title:    "iQ500 manual",
		FileName: "iQ500 manual.pdf",
		Pages:    88,
		Chunks:   210,
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	got, err := testDB.GetDocumentByTitle(ctx, scopeID, "iQ500 manual")
	if err != nil {
		t.Fatalf("GetDocumentByTitle failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetDocumentByTitle returned nil for existing record")
	}
	if got.Pages != 88 || got.Chunks != 210 {
		t.Errorf("counts = (%d, %d), want (88, 210)", got.Pages, got.Chunks)
	}

	missing, err := testDB.GetDocumentByTitle(ctx, scopeID, "no-such-title")
	if err != nil {
		t.Fatalf("GetDocumentByTitle failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing record, got %+v", missing)
	}
}

func TestListDocumentTitles(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "AEG")
	scopeID := models.MustRecordIDString(scope.ID)

	for _, title := range []string{"L6 manual", "L8 manual"} {
		_, err := testDB.CreateDocument(ctx, models.DocumentInput{
			ScopeID:  scopeID,
			Title:    title,
			FileName: title + ".pdf",
		})
		if err != nil {
			t.Fatalf("CreateDocument(%q) failed: %v", title, err)
		}
	}

	titles, err := testDB.ListDocumentTitles(ctx, scopeID)
	if err != nil {
		t.Fatalf("ListDocumentTitles failed: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2: %v", len(titles), titles)
	}
}

func TestUpdateDocument(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "Gaggenau")
	scopeID := models.MustRecordIDString(scope.ID)

	doc, err := testDB.CreateDocument(ctx, models.DocumentInput{
		ScopeID:  scopeID,
		Title:    "oven manual",
		FileName: "oven manual.pdf",
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	docID := models.MustRecordIDString(doc.ID)
	if err := testDB.UpdateDocument(ctx, docID, 42, 101); err != nil {
		t.Fatalf("UpdateDocument failed: %v", err)
	}

	got, err := testDB.GetDocumentByTitle(ctx, scopeID, "oven manual")
	if err != nil {
		t.Fatalf("GetDocumentByTitle failed: %v", err)
	}
	if got == nil || got.Pages != 42 || got.Chunks != 101 {
		t.Errorf("after update got %+v, want pages=42 chunks=101", got)
	}
}

func TestDeleteScope_CascadesDocuments(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "Neff")
	scopeID := models.MustRecordIDString(scope.ID)

	_, err := testDB.CreateDocument(ctx, models.DocumentInput{
		ScopeID:  scopeID,
		Title:    "hob manual",
		FileName: "hob manual.pdf",
	})
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	if err := testDB.DeleteScope(ctx, scopeID); err != nil {
		t.Fatalf("DeleteScope failed: %v", err)
	}

	gone, err := testDB.GetScopeByName(ctx, "Neff")
	if err != nil {
		t.Fatalf("GetScopeByName failed: %v", err)
	}
	if gone != nil {
		t.Error("scope still present after delete")
	}

	docs, err := testDB.ListDocuments(ctx, scopeID)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected cascade delete of documents, found %d", len(docs))
	}
}

func TestDeleteDocumentsByScope(t *testing.T) {
	ctx := context.Background()
	scope := mustCreateScope(t, "Liebherr")
	scopeID := models.MustRecordIDString(scope.ID)

	for _, title := range []string{"fridge manual", "freezer manual"} {
		if _, err := testDB.CreateDocument(ctx, models.DocumentInput{
			ScopeID:  scopeID,
			Title:    title,
			FileName: title + ".pdf",
		}); err != nil {
			t.Fatalf("CreateDocument(%q) failed: %v", title, err)
		}
	}

	deleted, err := testDB.DeleteDocumentsByScope(ctx, scopeID)
	if err != nil {
		t.Fatalf("DeleteDocumentsByScope failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
}
