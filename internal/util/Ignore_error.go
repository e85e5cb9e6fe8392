package util

// IgnoreError calls fn and drops the error it returns. Example `defer util.IgnoreError(client.Close)`
func IgnoreError(fn func() error) {
	_ = fn()
}
