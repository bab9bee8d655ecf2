package types

import "cosmossdk.io/errors"

var (
	ModuleBroker   = "broker"
	ModuleTransfer = "transfer"
	ModuleCodec    = "codec"
	ModuleListener = "listener"
	ModuleConfig   = "config"

	ErrNoConnection     = errors.Register(ModuleBroker, 10000, "no broker connection could be established")
	ErrConnectFailed    = errors.Register(ModuleBroker, 10001, "failed to connect to the broker")
	ErrConnUnavailable  = errors.Register(ModuleBroker, 10002, "broker connection is not available for this role")
	ErrStoreFailed      = errors.Register(ModuleBroker, 10003, "failed to store the payload")
	ErrFetchFailed      = errors.Register(ModuleBroker, 10004, "failed to fetch the payload")
	ErrPublishFailed    = errors.Register(ModuleBroker, 10005, "failed to publish the message")
	ErrSubscribeFailed  = errors.Register(ModuleBroker, 10006, "failed to subscribe to the channel")
	ErrReceiveFailed    = errors.Register(ModuleBroker, 10007, "failed to receive from the channel")
	ErrKeyNotFound      = errors.Register(ModuleBroker, 10008, "key not found")
	ErrInvalidRole      = errors.Register(ModuleBroker, 10009, "invalid connection role")
	ErrSubscriptionDone = errors.Register(ModuleBroker, 10010, "subscription is closed")
	ErrReadFileFailed   = errors.Register(ModuleTransfer, 11000, "failed to read the local file")
	ErrWriteFileFailed  = errors.Register(ModuleTransfer, 11001, "failed to write the destination file")
	ErrInvalidFileName  = errors.Register(ModuleTransfer, 11002, "invalid file name")
	ErrCompressFailed   = errors.Register(ModuleTransfer, 11003, "failed to compress the payload")
	ErrDecompressFailed = errors.Register(ModuleTransfer, 11004, "failed to decompress the payload")

	ErrCompressionMismatch = errors.Register(ModuleTransfer, 11005, "payload compression does not match the local setting")

	ErrSerializeFailed   = errors.Register(ModuleCodec, 12000, "failed to serialize the file")
	ErrDeserializeFailed = errors.Register(ModuleCodec, 12001, "failed to deserialize the payload")
	ErrUnknownFileType   = errors.Register(ModuleCodec, 12002, "unknown file type")

	ErrMalformedCommand      = errors.Register(ModuleListener, 13000, "malformed command")
	ErrMalformedAnnouncement = errors.Register(ModuleListener, 13001, "malformed announcement")

	ErrInvalidConfig      = errors.Register(ModuleConfig, 14000, "invalid config")
	ErrReadConfigFailed   = errors.Register(ModuleConfig, 14001, "failed to read the config")
	ErrDecodeConfigFailed = errors.Register(ModuleConfig, 14002, "failed to decode the config")
	ErrEncodeConfigFailed = errors.Register(ModuleConfig, 14003, "failed to encode the config")
)

// Wrap attaches err1 as the reason of the registered error err0, keeping
// err0 matchable with errors.Is.
func Wrap(err0 error, err1 error) error {
	if err1 == nil {
		return err0
	}
	return errors.Wrap(err0, "due to "+err1.Error())
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
