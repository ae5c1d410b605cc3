package stage

import (
	"bytes"
	"text/template"
)

// unitData feeds every service template.
type unitData struct {
	Name    string
	Service string
	Kind    string
	Wrapper string
	Prefix  string
}

var sysvTmpl = template.Must(template.New("sysv").Parse(`#!/bin/sh
### BEGIN INIT INFO
# Provides:          {{.Service}}
# Required-Start:    $network $remote_fs $syslog
# Required-Stop:     $network $remote_fs $syslog
# Default-Start:     2 3 4 5
# Default-Stop:      0 1 6
# Short-Description: Apache Mesos {{.Kind}}
### END INIT INFO

NAME={{.Service}}
DAEMON={{.Wrapper}}
PIDFILE=/var/run/$NAME.pid

[ -x "$DAEMON" ] || exit 0

. /lib/lsb/init-functions

case "$1" in
  start)
    log_daemon_msg "Starting $NAME"
    start-stop-daemon --start --background --make-pidfile --pidfile "$PIDFILE" --startas "$DAEMON" -- {{.Kind}}
    log_end_msg $?
    ;;
  stop)
    log_daemon_msg "Stopping $NAME"
    start-stop-daemon --stop --pidfile "$PIDFILE" --retry 10
    log_end_msg $?
    rm -f "$PIDFILE"
    ;;
  restart|force-reload)
    "$0" stop
    "$0" start
    ;;
  status)
    status_of_proc -p "$PIDFILE" "$DAEMON" "$NAME"
    ;;
  *)
    echo "Usage: $0 {start|stop|restart|force-reload|status}" >&2
    exit 3
    ;;
esac
`))

var upstartTmpl = template.Must(template.New("upstart").Parse(`description "Apache Mesos {{.Kind}}"

start on stopped rc RUNLEVEL=[2345]
stop on runlevel [!2345]

respawn
respawn limit 10 5

exec {{.Wrapper}} {{.Kind}}
`))

var systemdTmpl = template.Must(template.New("systemd").Parse(`[Unit]
Description=Apache Mesos {{.Kind}}
After=network.target
Wants=network.target

[Service]
ExecStart={{.Wrapper}} {{.Kind}}
Restart=always
RestartSec=20
LimitNOFILE=16384

[Install]
WantedBy=multi-user.target
`))

var runitTmpl = template.Must(template.New("runit").Parse(`#!/bin/sh
exec 2>&1
exec {{.Wrapper}} {{.Kind}}
`))

var runitLogTmpl = template.Must(template.New("runit-log").Parse(`#!/bin/sh
mkdir -p /var/log/{{.Service}}
exec svlogd -tt /var/log/{{.Service}}
`))

// wrapperTmpl starts a daemon with the settings from /etc/default and the
// ZooKeeper URL from /etc/<name>/zk.
var wrapperTmpl = template.Must(template.New("wrapper").Parse(`#!/bin/sh
set -e

kind="$1"
case "$kind" in
  master|slave) ;;
  *) echo "usage: $0 master|slave" >&2; exit 2 ;;
esac

set -a
[ -r /etc/default/{{.Name}} ] && . /etc/default/{{.Name}}
[ -r "/etc/default/{{.Name}}-$kind" ] && . "/etc/default/{{.Name}}-$kind"
set +a

if [ -r /etc/{{.Name}}/zk ]; then
  zk="$(cat /etc/{{.Name}}/zk)"
  case "$kind" in
    master) export MESOS_ZK="$zk" ;;
    slave) export MESOS_MASTER="$zk" ;;
  esac
fi

if [ -n "$ULIMIT" ]; then
  ulimit $ULIMIT
fi

exec {{.Prefix}}/sbin/{{.Name}}-"$kind"
`))

var defaultsTmpl = template.Must(template.New("defaults").Parse(`# Settings shared by the {{.Name}} services. MESOS_* variables are passed
# to the daemons as flags.
ULIMIT="-n 8192"
MESOS_LOG_DIR=/var/log/{{.Name}}
`))

var masterDefaultsTmpl = template.Must(template.New("master-defaults").Parse(`MESOS_WORK_DIR=/var/lib/{{.Name}}
MESOS_QUORUM=1
MESOS_PORT=5050
`))

var slaveDefaultsTmpl = template.Must(template.New("slave-defaults").Parse(`MESOS_WORK_DIR=/var/lib/{{.Name}}
MESOS_PORT=5051
`))

var logrotateTmpl = template.Must(template.New("logrotate").Parse(`/var/log/{{.Name}}/*.log {
    daily
    rotate 7
    compress
    delaycompress
    missingok
    notifempty
    copytruncate
}
`))

// scriptData feeds the maintainer scripts.
type scriptData struct {
	Name     string
	Init     string
	Services []string
}

var afterInstallTmpl = template.Must(template.New("after-install").Parse(`#!/bin/sh
set -e

mkdir -p /var/log/{{.Name}} /var/lib/{{.Name}}
{{if eq .Init "systemd"}}
if command -v systemctl >/dev/null 2>&1; then
  systemctl daemon-reload || true
fi
{{else if eq .Init "sysv"}}
if command -v update-rc.d >/dev/null 2>&1; then
{{- range .Services}}
  update-rc.d {{.}} defaults >/dev/null
{{- end}}
fi
{{else if eq .Init "upstart"}}
if command -v initctl >/dev/null 2>&1; then
  initctl reload-configuration || true
fi
{{else if eq .Init "runit"}}
{{- range .Services}}
[ -e /etc/service/{{.}} ] || ln -s /etc/sv/{{.}} /etc/service/{{.}}
{{- end}}
{{end}}
if command -v ldconfig >/dev/null 2>&1; then
  ldconfig
fi
`))

var beforeRemoveTmpl = template.Must(template.New("before-remove").Parse(`#!/bin/sh
set -e
{{range .Services}}
{{- if eq $.Init "systemd"}}
systemctl stop {{.}} >/dev/null 2>&1 || true
systemctl disable {{.}} >/dev/null 2>&1 || true
{{- else if eq $.Init "upstart"}}
stop {{.}} >/dev/null 2>&1 || true
{{- else if eq $.Init "sysv"}}
/etc/init.d/{{.}} stop >/dev/null 2>&1 || true
{{- else if eq $.Init "runit"}}
sv stop {{.}} >/dev/null 2>&1 || true
rm -f /etc/service/{{.}}
{{- end}}
{{- end}}
exit 0
`))

func render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
