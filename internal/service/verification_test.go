package service

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/internal/model"
	"bitwise74/otp-auth/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateResendVerify(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.verifier.Initiate(ctx, InitiateInput{
		CountryCode: "+1",
		PhoneNumber: "5551234",
		Channel:     model.ChannelWhatsApp,
		Purpose:     PurposeRegister,
	})
	require.NoError(t, err)

	assert.Equal(t, "+15551234", res.NormalizedPhone)
	assert.Equal(t, model.ChannelWhatsApp, res.Channel)
	assert.Equal(t, 10, res.ExpiresInMinutes)

	rec, err := e.verifs.FindPending(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Attempts)
	assert.False(t, rec.Verified)
	assert.WithinDuration(t, e.clock.Now().Add(10*time.Minute), rec.ExpiresAt, time.Second)
	require.NotNil(t, rec.JobID)
	assert.Equal(t, "job-1", *rec.JobID)

	jobs := e.dispatcher.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, TaskSendOTP, jobs[0].Name)
	assert.Equal(t, SendOTPPayload{PhoneNumber: "+15551234", Channel: "whatsapp"}, jobs[0].Payload)

	e.clock.Advance(3 * time.Minute)

	resent, err := e.verifier.Resend(ctx, ResendInput{CountryCode: "+1", PhoneNumber: "5551234", Channel: model.ChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, resent.ID)

	rec, err = e.verifs.FindPending(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Equal(t, model.ChannelSMS, rec.Channel)
	assert.Equal(t, 1, rec.Attempts)
	assert.WithinDuration(t, e.clock.Now().Add(10*time.Minute), rec.ExpiresAt, time.Second)
	assert.Equal(t, "job-2", *rec.JobID)
	assert.Equal(t, "sms", e.dispatcher.Jobs()[1].Payload.Channel)

	verified, err := e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	require.NotNil(t, verified.VerifiedAt)

	stored, err := e.verifs.FindVerified(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
	require.NotNil(t, stored.VerifiedAt)
	assert.WithinDuration(t, e.clock.Now(), *stored.VerifiedAt, time.Second)
}

func TestInitiateTwiceKeepsOneRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := InitiateInput{CountryCode: "+44", PhoneNumber: "7000000000", Purpose: PurposeRegister}

	for range 3 {
		_, err := e.verifier.Initiate(ctx, in)
		require.NoError(t, err)
	}

	n, err := e.verifs.CountByPhone(ctx, "+44", "7000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := e.verifs.FindPending(ctx, "+44", "7000000000")
	require.NoError(t, err)
	assert.Equal(t, "job-3", *rec.JobID)
}

func TestInitiateDropsVerifiedRecordToo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := InitiateInput{CountryCode: "+44", PhoneNumber: "7000000000", Purpose: PurposeRegister}

	_, err := e.verifier.Initiate(ctx, in)
	require.NoError(t, err)
	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+44", PhoneNumber: "7000000000", Code: "123456"})
	require.NoError(t, err)

	_, err = e.verifier.Initiate(ctx, in)
	require.NoError(t, err)

	_, err = e.verifs.FindVerified(ctx, "+44", "7000000000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInitiateDefaultsToWhatsApp(t *testing.T) {
	e := newEnv(t)

	res, err := e.verifier.Initiate(context.Background(), InitiateInput{
		CountryCode: "+1",
		PhoneNumber: "5551234",
		Purpose:     PurposeRegister,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ChannelWhatsApp, res.Channel)
}

func TestInitiateRejectsUnknownChannel(t *testing.T) {
	e := newEnv(t)

	_, err := e.verifier.Initiate(context.Background(), InitiateInput{
		CountryCode: "+1",
		PhoneNumber: "5551234",
		Channel:     "pigeon",
		Purpose:     PurposeRegister,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, e.dispatcher.Jobs())
}

func TestInitiateAccountPreconditions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createUser(t, "+1", "5551234")

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.ErrorIs(t, err, apperr.ErrConflict)

	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, true, ae.Data["user_exists"])

	_, err = e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5550000", Purpose: PurposeLogin})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeLogin})
	assert.NoError(t, err)

	n, err := e.verifs.CountByPhone(ctx, "+1", "5550000")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitiateEnqueueFailureCreatesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.dispatcher.err = errors.New("redis down")

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)

	n, err := e.verifs.CountByPhone(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResendWithoutPending(t *testing.T) {
	e := newEnv(t)

	_, err := e.verifier.Resend(context.Background(), ResendInput{CountryCode: "+1", PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResendCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	for i := 1; i <= DefaultMaxResendAttempts; i++ {
		// Elapsed time doesn't reset the cap
		e.clock.Advance(time.Hour)

		rec, err := e.verifier.Resend(ctx, ResendInput{CountryCode: "+1", PhoneNumber: "5551234"})
		require.NoError(t, err)
		assert.Equal(t, i, rec.Attempts)
	}

	_, err = e.verifier.Resend(ctx, ResendInput{CountryCode: "+1", PhoneNumber: "5551234"})
	assert.ErrorIs(t, err, apperr.ErrRateExceeded)

	rec, err := e.verifs.FindPending(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxResendAttempts, rec.Attempts)
	assert.Len(t, e.dispatcher.Jobs(), 1+DefaultMaxResendAttempts)
}

func TestResendRevivesExpiredRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	e.clock.Advance(11 * time.Minute)

	_, err = e.verifier.Resend(ctx, ResendInput{CountryCode: "+1", PhoneNumber: "5551234"})
	require.NoError(t, err)

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.NoError(t, err)
}

func TestVerifyWithoutPending(t *testing.T) {
	e := newEnv(t)

	_, err := e.verifier.Verify(context.Background(), VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, e.provider.Checks())
}

func TestVerifyExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	e.clock.Advance(10*time.Minute + time.Second)

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	require.ErrorIs(t, err, apperr.ErrExpired)

	ae, _ := apperr.As(err)
	assert.Equal(t, true, ae.Data["expired"])

	n, err := e.verifs.CountByPhone(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, e.provider.Checks())

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifyWrongCodeLeavesRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	before, err := e.verifs.FindPending(ctx, "+1", "5551234")
	require.NoError(t, err)

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "000000"})
	assert.ErrorIs(t, err, apperr.ErrInvalidCode)

	after, err := e.verifs.FindPending(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Attempts, after.Attempts)
	assert.False(t, after.Verified)

	// A retry with the right code still works
	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.NoError(t, err)
}

func TestVerifyProviderDown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	e.provider.checkErr = errProviderDown

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.ErrorIs(t, err, apperr.ErrProviderUnavailable)

	_, err = e.verifs.FindPending(ctx, "+1", "5551234")
	assert.NoError(t, err)
}

func TestVerifyRecordReplacedDuringCheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	e.provider.onCheck = func() {
		require.NoError(t, e.verifs.Delete(ctx, res.Record.ID))
	}

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.verifs.FindVerified(ctx, "+1", "5551234")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRequireVerified(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.verifier.RequireVerified(ctx, "+1", "5551234")
	require.ErrorIs(t, err, apperr.ErrValidation)

	ae, _ := apperr.As(err)
	assert.Equal(t, false, ae.Data["phone_verified"])

	_, err = e.verifier.Initiate(ctx, InitiateInput{CountryCode: "+1", PhoneNumber: "5551234", Purpose: PurposeRegister})
	require.NoError(t, err)

	// Pending isn't enough
	_, err = e.verifier.RequireVerified(ctx, "+1", "5551234")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.verifier.Verify(ctx, VerifyInput{CountryCode: "+1", PhoneNumber: "5551234", Code: "123456"})
	require.NoError(t, err)

	rec, err := e.verifier.RequireVerified(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.True(t, rec.Verified)

	e.clock.Advance(11 * time.Minute)

	_, err = e.verifier.RequireVerified(ctx, "+1", "5551234")
	assert.ErrorIs(t, err, apperr.ErrExpired)

	n, err := e.verifs.CountByPhone(ctx, "+1", "5551234")
	require.NoError(t, err)
	assert.Zero(t, n)
}
