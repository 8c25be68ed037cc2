package render

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
)

func (d *DeviceContext) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logValidationMessage,
	}
}

func (d *DeviceContext) setupDebugMessenger() error {
	if !d.cfg.EnableValidation {
		return nil
	}

	var err error
	d.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(d.instanceDriver)
	d.debugMessenger, _, err = d.debugDriver.CreateDebugUtilsMessenger(nil, d.debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "failed to create debug messenger")
	}

	return nil
}

func validationLevel(severity ext_debug_utils.DebugUtilsMessageSeverityFlags) slog.Level {
	if severity&ext_debug_utils.SeverityError != 0 {
		return slog.LevelError
	}
	return slog.LevelWarn
}

func logValidationMessage(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	Logger().Log(context.Background(), validationLevel(severity), data.Message, "type", msgType.String())
	return false
}
