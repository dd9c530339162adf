// Package config загружает conveyor.yaml и собирает из него проект:
// реестр задач, привязки шагов к handler'ам и расписания.
//
//	steps:
//	  sass:
//	    type: exec
//	    options: {command: sass}
//	    targets:
//	      dist: {args: [--style=expanded]}
//	      release: {args: [--style=compressed]}
//	tasks:
//	  default: [githooks, uglify, "sass:dist"]
//
// Многоцелевой шаг sass даёт шаги sass:dist и sass:release и неявную
// задачу sass, которая выполняет обе цели. Ссылка на имя, не являющееся
// ни задачей, ни привязанным шагом, отклоняется при загрузке (ErrUnboundStep).
package config
