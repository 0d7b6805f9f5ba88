package member

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
	"github.com/vladislavdragonenkov/ordercore/internal/storage/memory"
)

func newTestService() *Service {
	return NewService(memory.NewStore(), nil)
}

func TestService_JoinAndFind(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	joined, err := svc.Join(ctx, JoinRequest{
		Name:    "  Alice ",
		Address: domain.Address{City: "Seoul", Street: "Teheran-ro", Zipcode: "06100"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, joined.ID)
	require.Equal(t, "Alice", joined.Name)

	found, err := svc.FindOne(ctx, joined.ID)
	require.NoError(t, err)
	require.Equal(t, joined.Name, found.Name)
	require.Equal(t, "Seoul", found.Address.City)

	all, err := svc.FindMembers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.FindOne(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestService_JoinRejectsDuplicateAndBlankNames(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Join(ctx, JoinRequest{Name: "kim"})
	require.NoError(t, err)

	_, err = svc.Join(ctx, JoinRequest{Name: "kim"})
	require.ErrorIs(t, err, domain.ErrMemberNameTaken)

	_, err = svc.Join(ctx, JoinRequest{Name: "   "})
	require.ErrorIs(t, err, domain.ErrMemberNameRequired)

	all, err := svc.FindMembers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestService_ConcurrentJoinSameName(t *testing.T) {
	svc := newTestService()

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Join(context.Background(), JoinRequest{Name: "kim"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	joined := 0
	for err := range errs {
		if err == nil {
			joined++
			continue
		}
		require.ErrorIs(t, err, domain.ErrMemberNameTaken)
	}
	require.Equal(t, 1, joined)
}

func TestService_Update(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	alice, err := svc.Join(ctx, JoinRequest{Name: "Alice"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, JoinRequest{Name: "Bob"})
	require.NoError(t, err)

	renamed, err := svc.Update(ctx, alice.ID, "Alicia")
	require.NoError(t, err)
	require.Equal(t, "Alicia", renamed.Name)
	require.Equal(t, alice.Version+1, renamed.Version)

	// Повторное сохранение своего же имени не считается дубликатом.
	_, err = svc.Update(ctx, alice.ID, "Alicia")
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice.ID, "Bob")
	require.ErrorIs(t, err, domain.ErrMemberNameTaken)

	_, err = svc.Update(ctx, alice.ID, "")
	require.ErrorIs(t, err, domain.ErrMemberNameRequired)

	_, err = svc.Update(ctx, "missing", "Carol")
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	found, err := svc.FindOne(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Alicia", found.Name)
}

func TestService_SearchByName(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, name := range []string{"Alice", "Alicia", "Bob"} {
		_, err := svc.Join(ctx, JoinRequest{Name: name})
		require.NoError(t, err)
	}

	matches, err := svc.SearchByName(ctx, "Ali")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	matches, err = svc.SearchByName(ctx, "ali")
	require.NoError(t, err)
	require.Empty(t, matches)
}
