package card

// exported for the card_test package
var (
	SelectMasterFileCommand = selectMasterFileCommand
	ReadRecordCommand       = readRecordCommand
	VerifyPINCommand        = verifyPINCommand
	DecipherCommand         = decipherCommand
)
