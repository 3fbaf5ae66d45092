package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/oasis-iglesia/oasis/internal/domain"
	"github.com/oasis-iglesia/oasis/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	interval := a.appConfig.Channel.PollInterval
	if interval == "" {
		interval = "@every 1m"
	}
	_, err = a.sched.AddFunc(interval, a.SchedChannelMonitorTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@every 30s", a.SchedKillSwitchGaugeTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", a.SchedClearExpireData)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedChannelMonitorTask polls the provider for the live instance state.
func (a *Application) SchedChannelMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), a.appConfig.Channel.HTTPTimeout+5*time.Second)
	defer cancel()
	live := a.manager.RefreshLiveState(ctx)
	zap.L().Debug("channel live state", zap.String("state", live))
}

// SchedKillSwitchGaugeTask records 1 while sends are blocked.
func (a *Application) SchedKillSwitchGaugeTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	st, err := a.manager.Gate().State(context.Background())
	if err != nil {
		return
	}
	var v int64
	if st.Active {
		v = 1
	}
	metrics.SetGauge("channel_kill_switch", v)
}

func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	days := a.appConfig.Channel.EventRetentionDays
	n, err := a.recorder.DeleteOlderThan(context.Background(), days)
	if err != nil {
		zap.L().Error("purge channel events failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("purged channel events", zap.Int64("rows", n), zap.Int("days", days))
	}

	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*365)).Delete(&domain.SysOprLog{})
}
