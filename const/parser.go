package _const

import (
	"github.com/robfig/cron/v3"
)

// Parser 定时时间解析器，用于CronTrigger
// 支持可选的秒字段以及@every/@daily等描述符
var Parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
	cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
