package actions

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/remote"
)

func TestLoadFolders(t *testing.T) {
	f := newFixture(t)
	f.api.GetFoldersFn = func(context.Context) (model.Updates, error) {
		if !f.store.FoldersLoading() {
			t.Error("folders loading flag not set during fetch")
		}
		return model.Updates{Folders: []model.Folder{notes, archive}}, nil
	}

	if !f.folders.LoadFolders(context.Background()) {
		t.Fatal("load failed")
	}
	if f.store.FoldersLoading() {
		t.Error("folders loading flag still set")
	}
	if diff := cmp.Diff([]model.Folder{notes, archive}, f.store.Folders()); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFoldersUnauthenticated(t *testing.T) {
	f := newFixture(t)
	f.api.GetFoldersFn = func(context.Context) (model.Updates, error) {
		return model.Updates{}, remote.Errorf(remote.CodeUnauthenticated, "revoked")
	}
	if f.folders.LoadFolders(context.Background()) {
		t.Fatal("load succeeded")
	}
	if f.session.logouts != 1 {
		t.Errorf("logouts = %d, want 1", f.session.logouts)
	}
}

func TestActiveFolder(t *testing.T) {
	f := newFixture(t)
	f.store.SetFolders([]model.Folder{notes, archive})

	if _, ok := f.folders.GetActiveFolder(); ok {
		t.Error("active folder reported with none selected")
	}

	f.folders.SetActiveFolder(archive.ID)
	got, ok := f.folders.GetActiveFolder()
	if !ok || got != archive {
		t.Errorf("active = %v, %v; want %v", got, ok, archive)
	}

	f.folders.SetActiveFolder(99)
	if _, ok := f.folders.GetActiveFolder(); ok {
		t.Error("unknown folder reported as active")
	}
}

func TestFoldersWithGeneral(t *testing.T) {
	folders := []model.Folder{notes, archive}

	if diff := cmp.Diff(folders, FoldersWithGeneral(nil, folders)); diff != "" {
		t.Errorf("without user mismatch (-want +got):\n%s", diff)
	}

	want := []model.Folder{{ID: 5, Title: GeneralFolderTitle}, notes, archive}
	if diff := cmp.Diff(want, FoldersWithGeneral(&model.User{ID: 5}, folders)); diff != "" {
		t.Errorf("with user mismatch (-want +got):\n%s", diff)
	}
}

func TestCategories(t *testing.T) {
	folders := []model.Folder{
		{ID: 1, Category: ""},
		{ID: 2, Category: "work"},
		{ID: 3, Category: "home"},
		{ID: 4, Category: "work"},
	}
	if diff := cmp.Diff([]string{"", "work", "home"}, Categories(folders)); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestFind(t *testing.T) {
	f := newFixture(t)
	f.store.SetUser(&model.User{ID: 5})
	f.store.SetFolders([]model.Folder{notes})

	if got, ok := f.folders.Find(5); !ok || got.Title != GeneralFolderTitle {
		t.Errorf("Find(5) = %v, %v", got, ok)
	}
	if _, ok := f.folders.Find(404); ok {
		t.Error("Find found an unknown folder")
	}
}
