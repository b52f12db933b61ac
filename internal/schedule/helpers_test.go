package schedule

import "crmintctl/pkg/logx"

func nilLogger() logx.Logger { return logx.Nop() }
