package orbitalvk

//Numeric status codes returned across the emulated libGnm driver boundary.
//Guest code compares these against the console's 0x80Dxxxxx facility values,
//so they are sentinel int32 codes rather than Go errors. Initialization
//failures are the exception and surface as errors from NewGnmDriver.
const (
	StatusOk int32 = 0

	ErrorUnknown                         int32 = -0x7F2EF000 // 0x80D11000
	ErrorInvalidCountValue               int32 = -0x7F2EEFF0 // 0x80D11010
	ErrorInternal                        int32 = -0x7F2EEFEF // 0x80D11011
	ErrorSubmissionFailed                int32 = -0x7F2EEFEE // 0x80D11012
	ErrorComputeQueueInvalidPipeId       int32 = -0x7F2EEF80 // 0x80D11080
	ErrorComputeQueueInvalidQueueId      int32 = -0x7F2EEF7F // 0x80D11081
	ErrorComputeQueueInvalidRingBaseAddr int32 = -0x7F2EEF7E // 0x80D11082
	ErrorComputeQueueInvalidRingSize     int32 = -0x7F2EEF7D // 0x80D11083
	ErrorComputeQueueInvalidReadPtrAddr  int32 = -0x7F2EEF7C // 0x80D11084
)

//Virtual compute queue id space. The id derivation in MapComputeQueue uses
//MaxPipeId as its stride, so the largest derivable id reaches the slot count
//and MapComputeQueue keeps an explicit capacity check as a runtime contract.
const (
	MaxPipeId            uint32 = 8
	MaxQueueId           uint32 = 8
	VQueueIdBegin        uint32 = 1
	MaxComputeQueueCount uint32 = 64
)
