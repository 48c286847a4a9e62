package account

import (
	"context"
	"errors"
	"testing"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
)

func TestEraser_RemovesDocumentsAndIdentity(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ctx := context.Background()
	accounts := database.NewAccountRepository(store)
	tags := database.NewTagRepository(store)

	if err := accounts.Create(ctx, "u1", "u1@example.com"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := tags.Create(ctx, "u1", models.TagInput{Name: "work", Color: "#ff0000"}); err != nil {
		t.Fatalf("tags.Create() error = %v", err)
	}
	if _, err := tags.Create(ctx, "u2", models.TagInput{Name: "home", Color: "#00ff00"}); err != nil {
		t.Fatalf("tags.Create() error = %v", err)
	}

	identities := &mockIdentityDeleter{}
	if err := NewEraser(accounts, identities, nil).Erase(ctx, "u1"); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}

	if _, err := store.Get(ctx, "users/u1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("profile should be gone, got %v", err)
	}
	if remaining, _ := tags.List(ctx, "u1"); len(remaining) != 0 {
		t.Errorf("tags of u1 should be gone, got %d", len(remaining))
	}
	if remaining, _ := tags.List(ctx, "u2"); len(remaining) != 1 {
		t.Errorf("tags of u2 should survive, got %d", len(remaining))
	}
	if len(identities.calls) != 1 || identities.calls[0] != "u1" {
		t.Errorf("DeleteIdentity calls = %v", identities.calls)
	}
}

func TestEraser_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		deleteAllErr  error
		identityErr   error
		wantErr       bool
		wantIdentCall bool
	}{
		{name: "success", wantIdentCall: true},
		{name: "identity already gone", identityErr: apperrors.NotFound("identities.Delete", "identity not found"), wantIdentCall: true},
		{name: "identity delete fails", identityErr: errors.New("provider down"), wantErr: true, wantIdentCall: true},
		{name: "document delete fails", deleteAllErr: apperrors.Write("accounts.DeleteAll", errors.New("disk")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &mockAccountRepository{
				DeleteAllFunc: func(context.Context, string) error { return tt.deleteAllErr },
			}
			identities := &mockIdentityDeleter{
				DeleteIdentityFunc: func(context.Context, string) error { return tt.identityErr },
			}
			err := NewEraser(repo, identities, nil).Erase(context.Background(), "u1")
			if (err != nil) != tt.wantErr {
				t.Errorf("Erase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(identities.calls) == 1; got != tt.wantIdentCall {
				t.Errorf("identity deletion attempted = %v, want %v", got, tt.wantIdentCall)
			}
		})
	}
}
