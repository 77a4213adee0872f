package webrtc

// RefBool returns a pointer to a newly created bool.
func RefBool(value bool) *bool {
	return &value
}

// RefUint returns a pointer to a newly created uint.
func RefUint(value uint) *uint {
	return &value
}

// RefUint8 returns a pointer to a newly created uint8.
func RefUint8(value uint8) *uint8 {
	return &value
}

// RefUint16 returns a pointer to a newly created uint16.
func RefUint16(value uint16) *uint16 {
	return &value
}

// RefUint32 returns a pointer to a newly created uint32.
func RefUint32(value uint32) *uint32 {
	return &value
}

// RefUint64 returns a pointer to a newly created uint64.
func RefUint64(value uint64) *uint64 {
	return &value
}

// RefInt returns a pointer to a newly created int.
func RefInt(value int) *int {
	return &value
}

// RefInt8 returns a pointer to a newly created int8.
func RefInt8(value int8) *int8 {
	return &value
}

// RefInt16 returns a pointer to a newly created int16.
func RefInt16(value int16) *int16 {
	return &value
}

// RefInt32 returns a pointer to a newly created int32.
func RefInt32(value int32) *int32 {
	return &value
}

// RefInt64 returns a pointer to a newly created int64.
func RefInt64(value int64) *int64 {
	return &value
}

// RefFloat32 returns a pointer to a newly created float32.
func RefFloat32(value float32) *float32 {
	return &value
}

// RefFloat64 returns a pointer to a newly created float64.
func RefFloat64(value float64) *float64 {
	return &value
}

// RefComplex64 returns a pointer to a newly created complex64.
func RefComplex64(value complex64) *complex64 {
	return &value
}

// RefComplex128 returns a pointer to a newly created complex128.
func RefComplex128(value complex128) *complex128 {
	return &value
}

// RefByte returns a pointer to a newly created byte.
func RefByte(value byte) *byte {
	return &value
}

// RefRune returns a pointer to a newly created rune.
func RefRune(value rune) *rune {
	return &value
}

// RefString returns a pointer to a newly created string.
func RefString(value string) *string {
	return &value
}
