package telegram

import (
	"context"
	"errors"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/memohai/tglistener/internal/platform"
)

var errSignUpUnsupported = errors.New("account is not registered; sign up is not supported")

// promptAuthenticator answers the login flow from a platform.Prompter.
type promptAuthenticator struct {
	phone    string
	prompter platform.Prompter
}

var _ auth.UserAuthenticator = promptAuthenticator{}

func (a promptAuthenticator) Phone(context.Context) (string, error) {
	return a.phone, nil
}

func (a promptAuthenticator) Password(ctx context.Context) (string, error) {
	if a.prompter == nil {
		return "", auth.ErrPasswordNotProvided
	}
	return a.prompter.Password(ctx, a.phone)
}

func (a promptAuthenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	if a.prompter == nil {
		return "", errors.New("login code required but no prompter is configured")
	}
	return a.prompter.Code(ctx, a.phone)
}

func (a promptAuthenticator) AcceptTermsOfService(context.Context, tg.HelpTermsOfService) error {
	return errSignUpUnsupported
}

func (a promptAuthenticator) SignUp(context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errSignUpUnsupported
}
