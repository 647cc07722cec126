/*
Package resilience guards calls to remote collaborators with circuit breakers.

Orbit runs three breakers: "ai-openai" around chat completions,
"http-external" around page fetches and one per playback engine. Each
collaborator decides through Settings.IsSuccessful which failures say
something about the remote's health, so a 404 page or a rejected prompt
never opens a circuit while timeouts and 5xx answers do.

	breaker := resilience.New("http-external", resilience.Settings{
		Timeout: 30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || !isUpstream(err)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.SetBreakerState(name, int(to))
		},
	})

	page, err := resilience.Call(breaker, func() (*fetch.Page, error) {
		return client.get(ctx, url)
	})
	if resilience.IsRejection(err) {
		// the remote was not contacted
	}

States move Closed -> Open once ReadyToTrip accepts the counts, Open ->
Half-Open after Timeout, and Half-Open -> Closed after MaxRequests
consecutive successes. Any failure while half-open reopens the circuit.
*/
package resilience
