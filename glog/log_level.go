package glog

const (
	// generic error message
	LV_ERR_DETAIL = 1
	// error stack or DEBUG
	LV_ERR_STACK = 2

	LV_SESSION = 1 // dhm session lifecycle
	LV_KEYGEN  = 1 // rsa keygen winner / failure

	LV_PACKET = 2 // dhm packet field dumps
	LV_CRC    = 2 // rsa codec crc / fileinfo diagnostics

	LV_WORKER = 3 // rsa keygen / decrypt worker chatter

	LV_BLOCK = 4 // rsa codec per-block tracing
)
