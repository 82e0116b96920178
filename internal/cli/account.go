package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
	"dermassist/client/internal/backend"
	"dermassist/client/internal/forms"
	"dermassist/client/internal/security"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			a.Session.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			a.Session.Initialize(ctx)
			snap := a.Session.Snapshot()
			if !snap.IsLoggedIn {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			u := snap.User
			fmt.Fprintf(cmd.OutOrStdout(), "%s (@%s) <%s>\n", u.FullName, u.Username, u.Email)
			if exp, ok := security.TokenExpiry(snap.Token); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Session expires %s\n", exp.Local().Format("2 Jan 2006, 03:04 PM"))
			}
			return nil
		})
	},
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Request a password reset link",
	RunE:  runForgotPassword,
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password using a reset token",
	RunE:  runResetPassword,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd, forgotPasswordCmd, resetPasswordCmd)

	loginCmd.Flags().StringP("username", "u", "", "Username")
	loginCmd.Flags().StringP("password", "p", "", "Password")

	registerCmd.Flags().String("full-name", "", "Full name")
	registerCmd.Flags().StringP("username", "u", "", "Username (at least 3 characters)")
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().StringP("password", "p", "", "Password (at least 8 characters)")
	registerCmd.Flags().String("phone", "", "Phone number (optional)")
	registerCmd.Flags().String("gender", "", "Gender (optional)")
	registerCmd.Flags().String("dob", "", "Date of birth, YYYY-MM-DD (optional)")

	forgotPasswordCmd.Flags().String("email", "", "Account email address")

	resetPasswordCmd.Flags().String("token", "", "Reset token from the emailed link")
	resetPasswordCmd.Flags().StringP("password", "p", "", "New password")
}

// formError turns a validation message into a command error.
func formError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

func backendError(err error, fallback string) error {
	if msg := backend.Detail(err); msg != "" {
		return errors.New(msg)
	}
	if backend.IsUnauthorized(err) {
		return errors.New("not authorized: run 'dermassist login' again")
	}
	return fmt.Errorf("%s: %w", fallback, err)
}

func runLogin(cmd *cobra.Command, args []string) error {
	var form forms.Login
	form.Username, _ = cmd.Flags().GetString("username")
	form.Password, _ = cmd.Flags().GetString("password")
	if err := formError(form.Validate()); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Session.Login(ctx, form.Username, form.Password); err != nil {
			return backendError(err, forms.MsgLoginFailed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", a.Session.Snapshot().User.Username)
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	var form forms.Register
	form.FullName, _ = cmd.Flags().GetString("full-name")
	form.Username, _ = cmd.Flags().GetString("username")
	form.Email, _ = cmd.Flags().GetString("email")
	form.Password, _ = cmd.Flags().GetString("password")
	form.ConfirmPassword = form.Password
	form.PhoneNumber, _ = cmd.Flags().GetString("phone")
	form.Gender, _ = cmd.Flags().GetString("gender")
	form.DateOfBirth, _ = cmd.Flags().GetString("dob")
	if err := formError(form.Validate()); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Session.Register(ctx, form.Input()); err != nil {
			return backendError(err, forms.MsgRegisterFailed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created. Signed in as %s.\n", form.Username)
		return nil
	})
}

func runForgotPassword(cmd *cobra.Command, args []string) error {
	var form forms.ForgotPassword
	form.Email, _ = cmd.Flags().GetString("email")
	if err := formError(form.Validate()); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Backend.ForgotPassword(ctx, form.Email); err != nil {
			return backendError(err, forms.MsgForgotFailed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "If %s is registered, a reset link is on its way. It expires in 30 minutes.\n", form.Email)
		return nil
	})
}

func runResetPassword(cmd *cobra.Command, args []string) error {
	var form forms.ResetPassword
	form.Token, _ = cmd.Flags().GetString("token")
	form.Password, _ = cmd.Flags().GetString("password")
	form.ConfirmPassword = form.Password
	if err := formError(form.Validate()); err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Backend.ResetPassword(ctx, form.Token, form.Password); err != nil {
			return backendError(err, forms.MsgResetFailed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Your password has been updated. You can now sign in.")
		return nil
	})
}
