/*
Package accountsdk provides a client SDK for the accounts service, plus the
request, response and error types shared with the server.

# Usage

	client := accountsdk.NewClient("https://accounts.example.com")

	// Register and keep the returned token
	auth, err := client.Register(ctx, accountsdk.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse",
	})

	// Confirm the emailed code
	_, err = client.VerifyEmail(ctx, "alice@example.com", "482913")

	// Fetch the current account state
	me, err := client.Me(ctx, auth.Token)

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status,
a machine-readable code and a description. Compare with errors.As:

	var apiErr *accountsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == accountsdk.ErrorCodeInvalidCredentials {
		// prompt again
	}
*/
package accountsdk
