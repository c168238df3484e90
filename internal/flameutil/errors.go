package flameutil

// FlattenErrors converts a slice of errors to a slice of strings.
func FlattenErrors(errs ...error) []string {
	if len(errs) <= 0 {
		return nil
	}
	strs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		strs = append(strs, err.Error())
	}
	return strs
}
