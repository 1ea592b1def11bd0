package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/integration"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
	"github.com/tffhost/backend/tests/testutil"
)

func newService(t *testing.T, profiles ...*profile.Profile) (*Service, *testutil.ProfileRepository) {
	t.Helper()
	repo := testutil.NewProfileRepository(profiles...)
	return NewService(repo, zap.NewNop()), repo
}

func newProfile(t *testing.T, status profile.KYCStatus) *profile.Profile {
	t.Helper()
	p, err := profile.New("alice", "Alice", "alice@example.com", "tf-app", time.Now())
	require.NoError(t, err)
	p.KYC.Status = status
	return p
}

func TestService_Register(t *testing.T) {
	service, repo := newService(t)

	resp, err := service.Register(context.Background(), RegisterRequest{Username: "alice", Name: "Alice", Email: "a@example.com", AppID: "tf"})
	require.NoError(t, err)
	assert.Equal(t, int(profile.KYCStatusUnverified), resp.KYC.Status)

	repo.Profiles["alice"].KYC.Status = profile.KYCStatusVerified
	resp, err = service.Register(context.Background(), RegisterRequest{Username: "alice", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", resp.Email)
	assert.Equal(t, "Alice", resp.Name)
	assert.Equal(t, int(profile.KYCStatusVerified), resp.KYC.Status, "registration keeps the KYC state")
}

func TestService_SetKYCStatus_Effects(t *testing.T) {
	tests := []struct {
		name  string
		from  profile.KYCStatus
		to    profile.KYCStatus
		types []effect.Type
	}{
		{"start flow", profile.KYCStatusUnverified, profile.KYCStatusPendingSubmit,
			[]effect.Type{effect.TypeKYCFlowMessage, effect.TypeUserDataKYC}},
		{"approve", profile.KYCStatusPendingApproval, profile.KYCStatusVerified,
			[]effect.Type{effect.TypeKYCApprovedMessage, effect.TypeUserDataKYC}},
		{"deny", profile.KYCStatusPendingApproval, profile.KYCStatusDenied,
			[]effect.Type{effect.TypeUserDataKYC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo := newService(t, newProfile(t, tt.from))

			resp, err := service.SetKYCStatus(context.Background(), "alice", tt.to, "admin", "checked")
			require.NoError(t, err)

			assert.Equal(t, int(tt.to), resp.KYC.Status)
			require.Len(t, resp.KYC.Updates, 1)
			assert.Equal(t, "admin", resp.KYC.Updates[0].Author)
			assert.Equal(t, tt.types, repo.Types())
		})
	}
}

func TestService_SetKYCStatus_Rejected(t *testing.T) {
	service, repo := newService(t, newProfile(t, profile.KYCStatusUnverified))

	_, err := service.SetKYCStatus(context.Background(), "alice", profile.KYCStatusVerified, "admin", "")
	assert.ErrorIs(t, err, profile.ErrCannotChangeKYCStatus)
	assert.Empty(t, repo.Tasks())

	_, err = service.SetKYCStatus(context.Background(), "bob", profile.KYCStatusPendingSubmit, "admin", "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_Member(t *testing.T) {
	noChat, err := profile.New("bob", "Bob", "", "", time.Now())
	require.NoError(t, err)
	service, _ := newService(t, newProfile(t, profile.KYCStatusUnverified), noChat)

	member, err := service.Member(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, integration.Member{Email: "alice@example.com", AppID: "tf-app"}, member)

	_, err = service.Member(context.Background(), "bob")
	assert.True(t, effect.IsPermanent(err))

	_, err = service.Member(context.Background(), "carol")
	assert.True(t, effect.IsPermanent(err))
}

func TestExecutors_KYC(t *testing.T) {
	p := newProfile(t, profile.KYCStatusVerified)
	repo := testutil.NewProfileRepository(p)
	chat := new(testutil.MockChat)
	members := testutil.StaticMembers{AppID: "tf"}
	member := integration.Member{Email: "alice@example.com", AppID: "tf"}
	executors := NewExecutors(repo, members, chat, "kyc-flow-id").Register()

	chat.On("StartFlow", mock.Anything, member, integration.Flow{
		Tag:         "kyc_part_1",
		Flow:        "kyc-flow-id",
		PushMessage: "KYC procedure has been initiated",
		Params:      map[string]any{"message": "please"},
	}).Return(nil)
	chat.On("SendMessage", mock.Anything, member, "KYC procedure approved", mock.Anything).Return(nil)
	chat.On("PutUserData", mock.Anything, member, map[string]any{
		"kyc": map[string]any{"status": 50, "verified": true, "has_utility_bill": false},
	}).Return(nil)

	ctx := context.Background()
	require.NoError(t, executors[effect.TypeKYCFlowMessage].Execute(ctx,
		effect.MustNewTask("alice", effect.TypeKYCFlowMessage, effect.KYCFlow{Username: "alice", Comment: "please"})))
	require.NoError(t, executors[effect.TypeKYCApprovedMessage].Execute(ctx,
		effect.MustNewTask("alice", effect.TypeKYCApprovedMessage, effect.UserRef{Username: "alice"})))
	require.NoError(t, executors[effect.TypeUserDataKYC].Execute(ctx,
		effect.MustNewTask("alice", effect.TypeUserDataKYC, effect.UserRef{Username: "alice"})))
	chat.AssertExpectations(t)
}
