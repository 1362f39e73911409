package orbitalvk

func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	for i := range list {
		list[i] = safeString(list[i])
	}
	return list
}

func isPowerOfTwo(value uint32) bool {
	return value != 0 && value&(value-1) == 0
}

func isAligned(addr uintptr, alignment uintptr) bool {
	return addr%alignment == 0
}

//Busy polls the condition up to max_spin iterations. Returns true when the
//condition held before the budget ran out. Favors low latency for short GPU
//waits over a full blocking wait primitive.
func spin(max_spin int, condition func() bool) bool {
	for index := 0; index < max_spin; index++ {
		if condition() {
			return true
		}
	}
	return false
}
